package notify_test

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/notify"
)

func subscriptionFor(t *testing.T, endpoint string) domain.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return domain.PushSubscription{
		UserID:   "u1",
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func TestWebPushSender_Outcomes(t *testing.T) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	cases := []struct {
		status  int
		outcome notify.PushOutcome
		wantErr bool
	}{
		{http.StatusCreated, notify.PushDelivered, false},
		{http.StatusGone, notify.PushGone, false},
		{http.StatusNotFound, notify.PushGone, false},
		{http.StatusInternalServerError, notify.PushFailed, true},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			var gotEncoding string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotEncoding = r.Header.Get("Content-Encoding")
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			sender := notify.NewWebPushSender(notify.VAPIDConfig{
				Subject:    "mailto:ops@example.com",
				PublicKey:  publicKey,
				PrivateKey: privateKey,
			}, srv.Client())

			outcome, err := sender.Send(context.Background(), subscriptionFor(t, srv.URL+"/push/abc"), notify.PushMessage{
				Title: "hello",
				Body:  "world",
				URL:   "/tickets/1",
			})
			assert.Equal(t, tc.outcome, outcome)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "aes128gcm", gotEncoding)
		})
	}
}
