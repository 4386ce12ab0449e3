package shopclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "correct-horse"
	testOTPCode  = "123456"
)

// fakeAPI is an in-process stand-in for the storefront identity/cart API,
// speaking the same response envelope.
type fakeAPI struct {
	mu           sync.Mutex
	hasSession   bool
	strictAuth   bool
	user         User
	serverCart   []CartItem
	failMerge    bool
	refreshCalls int
	profileCalls int
	cartCalls    int
	mergeCalls   int
	otpSendCalls int
	mergeSIDs    []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		user: User{ID: "u-1", Phone: "+989123456789", FirstName: "Sara", Role: "customer"},
	}
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]any{"success": success, "message": msg}
	if data != nil {
		payload["data"] = data
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (a *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			Phone    string `json:"phone"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&p)
		a.mu.Lock()
		defer a.mu.Unlock()
		if p.Password != testPassword {
			writeEnvelope(w, http.StatusUnauthorized, false, "invalid credentials", nil)
			return
		}
		a.hasSession = true
		writeEnvelope(w, http.StatusOK, true, "login success", map[string]any{
			"accessToken": "access-tok",
			"user":        a.user,
		})
	})

	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.refreshCalls++
		if !a.hasSession {
			writeEnvelope(w, http.StatusUnauthorized, false, "invalid refresh token", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "token refreshed", map[string]any{"accessToken": "access-tok"})
	})

	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.hasSession = false
		writeEnvelope(w, http.StatusOK, true, "logged out", nil)
	})

	mux.HandleFunc("GET /api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.profileCalls++
		if !a.hasSession || (a.strictAuth && r.Header.Get("Authorization") != "Bearer access-tok") {
			writeEnvelope(w, http.StatusUnauthorized, false, "invalid access token", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "profile", a.user)
	})

	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.cartCalls++
		writeEnvelope(w, http.StatusOK, true, "cart", map[string]any{"items": a.serverCart})
	})

	mux.HandleFunc("POST /api/cart/merge", func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			SessionID string     `json:"sessionId"`
			Items     []CartItem `json:"items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&p)
		a.mu.Lock()
		defer a.mu.Unlock()
		a.mergeCalls++
		a.mergeSIDs = append(a.mergeSIDs, p.SessionID)
		if a.failMerge {
			writeEnvelope(w, http.StatusInternalServerError, false, "internal server error", nil)
			return
		}
	next:
		for _, in := range p.Items {
			for i := range a.serverCart {
				if a.serverCart[i].ProductID == in.ProductID {
					a.serverCart[i].Quantity += in.Quantity
					continue next
				}
			}
			a.serverCart = append(a.serverCart, in)
		}
		writeEnvelope(w, http.StatusOK, true, "cart merged", map[string]any{"items": a.serverCart})
	})

	mux.HandleFunc("POST /api/auth/otp/send", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.otpSendCalls++
		writeEnvelope(w, http.StatusOK, true, "otp sent", nil)
	})

	mux.HandleFunc("POST /api/auth/otp/verify", func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&p)
		if p.Code != testOTPCode {
			writeEnvelope(w, http.StatusBadRequest, false, "otp code mismatch", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "mobile verified", nil)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (a *fakeAPI) counts() (refresh, profile, cart, merge int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshCalls, a.profileCalls, a.cartCalls, a.mergeCalls
}

func (a *fakeAPI) setFailMerge(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failMerge = fail
}

func (a *fakeAPI) mergedSIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.mergeSIDs...)
}

func (a *fakeAPI) cartSnapshot() []CartItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]CartItem(nil), a.serverCart...)
}

func TestStartWithStoredSession(t *testing.T) {
	api := newFakeAPI()
	api.hasSession = true
	srv := api.server(t)
	sm := NewAuthStateMachine(NewClient(srv.URL))

	require.NoError(t, sm.Start(context.Background()))
	assert.Equal(t, StateAuthenticated, sm.State())
	require.NotNil(t, sm.User())
	assert.Equal(t, "u-1", sm.User().ID)
}

func TestStartWithoutSessionSettlesUnauthenticated(t *testing.T) {
	api := newFakeAPI()
	srv := api.server(t)
	sm := NewAuthStateMachine(NewClient(srv.URL))

	require.NoError(t, sm.Start(context.Background()))
	assert.Equal(t, StateUnauthenticated, sm.State())
	assert.Nil(t, sm.User())

	_, profile, _, _ := api.counts()
	assert.Equal(t, 0, profile, "no profile fetch without a session")
}

func TestStartFiresAtMostOnce(t *testing.T) {
	api := newFakeAPI()
	api.hasSession = true
	srv := api.server(t)
	sm := NewAuthStateMachine(NewClient(srv.URL))
	ctx := context.Background()

	require.NoError(t, sm.Start(ctx))
	// A repeat trigger is rejected structurally, before any network call.
	assert.ErrorIs(t, sm.Start(ctx), ErrInvalidTransition)

	_, profile, _, _ := api.counts()
	assert.Equal(t, 1, profile)
}

func TestStartConcurrentTriggersSingleFetch(t *testing.T) {
	api := newFakeAPI()
	api.hasSession = true
	srv := api.server(t)
	sm := NewAuthStateMachine(NewClient(srv.URL))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- sm.Start(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	rejected := 0
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidTransition)
			rejected++
		}
	}
	assert.Equal(t, 1, rejected)

	_, profile, _, _ := api.counts()
	assert.Equal(t, 1, profile, "exactly one profile fetch despite the double trigger")
	assert.Equal(t, StateAuthenticated, sm.State())
}

func TestLoginLogoutTransitions(t *testing.T) {
	api := newFakeAPI()
	srv := api.server(t)
	sm := NewAuthStateMachine(NewClient(srv.URL))
	ctx := context.Background()

	u, err := sm.Login(ctx, "+989123456789", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, StateAuthenticated, sm.State())

	// Login is not legal while authenticated.
	_, err = sm.Login(ctx, "+989123456789", testPassword)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, sm.Logout(ctx))
	assert.Equal(t, StateUnauthenticated, sm.State())
	assert.Nil(t, sm.User())

	// Logout from rest is not legal either.
	assert.ErrorIs(t, sm.Logout(ctx), ErrInvalidTransition)
}

func TestLoginFailureSettlesUnauthenticated(t *testing.T) {
	api := newFakeAPI()
	srv := api.server(t)
	sm := NewAuthStateMachine(NewClient(srv.URL))
	ctx := context.Background()

	_, err := sm.Login(ctx, "+989123456789", "wrong-horse")
	require.Error(t, err)
	assert.Equal(t, StateUnauthenticated, sm.State())

	// The machine is back at rest, so a corrected login goes through.
	_, err = sm.Login(ctx, "+989123456789", testPassword)
	assert.NoError(t, err)
}

func TestSettlementDeliveredOncePerEpoch(t *testing.T) {
	api := newFakeAPI()
	srv := api.server(t)
	sm := NewAuthStateMachine(NewClient(srv.URL))
	ctx := context.Background()

	var mu sync.Mutex
	var got []Settlement
	sm.OnSettled(func(s Settlement) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	_, err := sm.Login(ctx, "+989123456789", testPassword)
	require.NoError(t, err)
	require.NoError(t, sm.Logout(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Epoch)
	assert.True(t, got[0].Authenticated)
	assert.Equal(t, 2, got[1].Epoch)
	assert.False(t, got[1].Authenticated)
	assert.True(t, got[1].Logout)
}
