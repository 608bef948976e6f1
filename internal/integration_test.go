package internal

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"push-demo-backend/config"
	"push-demo-backend/internal/api"
	"push-demo-backend/internal/model"
	"push-demo-backend/internal/notification"
	"push-demo-backend/internal/store"
	"push-demo-backend/internal/vapid"
)

type vendorRequest struct {
	path   string
	header http.Header
	body   []byte
}

// TestSubscriptionLifecycle subscribes a browser, sends to it through a push
// service that reports the subscription gone, and checks the row is pruned.
func TestSubscriptionLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// --- Test Setup ---

	// 1. Setup an in-memory SQLite database for testing.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, testDB.AutoMigrate(&model.PushSubscription{}))
	appStore := store.NewGormStore(testDB)

	// 2. A push service that accepts the first message and forgets the device afterwards.
	var (
		mu       sync.Mutex
		received []vendorRequest
	)
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, vendorRequest{path: r.URL.Path, header: r.Header.Clone(), body: body})
		count := len(received)
		mu.Unlock()

		if count == 1 {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusGone)
	}))
	defer vendor.Close()
	vendorRequests := func() []vendorRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]vendorRequest(nil), received...)
	}

	// 3. Wire the service the way cmd/pushd does.
	cfg := config.Default()
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000

	keys, err := vapid.GenerateKeys()
	require.NoError(t, err)
	identity, err := vapid.New("mailto:ops@example.com", keys.PublicKey, keys.PrivateKey)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	dispatcher := notification.NewDispatcher(
		appStore,
		notification.NewEncoder(identity, "", 0),
		notification.NewHTTPTransport(cfg.Dispatch.Timeout),
		notification.NewMetrics(registry),
		notification.Options{Concurrency: 2, Timeout: 2 * time.Second, TTL: cfg.Push.TTL, Urgency: cfg.Push.Urgency},
	)
	pool := notification.NewWorkerPool(1, 4, dispatcher)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	router := api.NewRouter(api.NewHandler(appStore, identity, pool, false), cfg.Server, registry)
	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		return w
	}

	// 4. Browser side keys.
	browserKey, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	authSecret := make([]byte, 16)
	_, err = rand.Read(authSecret)
	require.NoError(t, err)

	// --- Step 1: fetch the public key ---
	w := do("GET", "/api/push/vapidpublickey", "")
	require.Equal(t, http.StatusOK, w.Code)
	var publicKey string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &publicKey))
	assert.Equal(t, keys.PublicKey, publicKey)

	// --- Step 2: subscribe ---
	subscribe := fmt.Sprintf(`{"subscription":{"endpoint":%q,"expirationTime":null,"keys":{"p256dh":%q,"auth":%q}}}`,
		vendor.URL+"/push/device-1",
		base64.RawURLEncoding.EncodeToString(browserKey.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(authSecret),
	)
	w = do("POST", "/api/push/subscribe", subscribe)
	require.Equal(t, http.StatusOK, w.Code)
	var stored model.PushSubscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	require.NotEmpty(t, stored.OwnerID)

	// --- Step 3: first send is delivered ---
	w = do("POST", "/api/push/send/"+stored.OwnerID, `{"title":"Hello","body":"first"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool { return len(vendorRequests()) == 1 }, 5*time.Second, 10*time.Millisecond)

	first := vendorRequests()[0]
	assert.Equal(t, "/push/device-1", first.path)
	assert.Equal(t, "aes128gcm", first.header.Get("Content-Encoding"))
	assert.Equal(t, "3600", first.header.Get("TTL"))
	assert.Equal(t, "normal", first.header.Get("Urgency"))
	assert.Len(t, first.body, 4096)

	auth := first.header.Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "vapid t="), auth)
	token := strings.TrimPrefix(strings.SplitN(auth, ",", 2)[0], "vapid t=")
	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, vendor.URL, claims["aud"])
	assert.Equal(t, "mailto:ops@example.com", claims["sub"])

	subs, err := appStore.ByOwner(context.Background(), stored.OwnerID)
	require.NoError(t, err)
	assert.Len(t, subs, 1, "delivered subscriptions are kept")

	// --- Step 4: second send finds the subscription gone and prunes it ---
	w = do("POST", "/api/push/send/"+stored.OwnerID, `{"body":"second"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		subs, err := appStore.ByOwner(context.Background(), stored.OwnerID)
		return err == nil && len(subs) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, vendorRequests(), 2)

	// --- Step 5: metrics reflect both outcomes ---
	require.Eventually(t, func() bool {
		w := do("GET", "/metrics", "")
		return w.Code == http.StatusOK && strings.Contains(w.Body.String(), "webpush_subscriptions_pruned_total 1")
	}, 5*time.Second, 10*time.Millisecond)
	metrics := do("GET", "/metrics", "").Body.String()
	assert.Contains(t, metrics, `webpush_deliveries_total{outcome="delivered"} 1`)
	assert.Contains(t, metrics, `webpush_deliveries_total{outcome="gone"} 1`)
}
