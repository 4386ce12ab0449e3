package helpers

import (
	"crypto/rand"
	"fmt"
)

// OTP helpers

// KeyOTPCode is the Redis key holding the active challenge code for a phone.
func KeyOTPCode(phone string) string {
	return "otp:code:" + phone
}

// KeyOTPAttempts is the Redis key counting failed verification attempts.
func KeyOTPAttempts(phone string) string {
	return "otp:attempts:" + phone
}

// KeyCartMerged marks a completed guest-cart merge for a (user, guest session) pair.
func KeyCartMerged(userID, sessionID string) string {
	return "cart:merged:" + userID + ":" + sessionID
}

// KeyUserProfile caches the user row between profile reads.
func KeyUserProfile(userID string) string {
	return "user:profile:" + userID
}

// GenOTPCode generates a secure random 6-digit OTP code as a zero-padded string
func GenOTPCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// 6 digits: map random bytes to 000000-999999
	n := int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	if n < 0 {
		n = -n
	}
	code := n % 1000000
	return fmt.Sprintf("%06d", code), nil
}
