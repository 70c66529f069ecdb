package checkin_api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-ledger/internal/auth"
	"ms-ledger/internal/checkin"
	checkindb "ms-ledger/internal/checkin/db"
	"ms-ledger/internal/checkin/qr"
	"ms-ledger/internal/checkin/signature"
	"ms-ledger/internal/ledgertest"
	"ms-ledger/internal/models"
	"ms-ledger/internal/sse"
	"ms-ledger/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guest = "guest-addr"

type fixture struct {
	env     *ledgertest.Env
	event   *models.Event
	emitter *sse.AttendanceEmitter
	router  http.Handler
	claim   models.CheckInClaim
}

func setup(t *testing.T) fixture {
	t.Helper()
	env := ledgertest.New(t)
	ev := env.Initialize(t, []models.Tier{ledgertest.Tier(1, 5, 10, "x", 10)}, ledgertest.Segments(1))
	require.NoError(t, env.Rosters.Group(ev.GuestRoster).UpdateMembers(context.Background(),
		[]models.Member{{Address: guest, Weight: 1}}, nil))

	svc := checkin.NewCheckInService(env.Bun, &checkindb.DB{Bun: env.Bun}, env.EventDB, env.Rosters, env.Lock, env.Events, env.Logger)
	emitter := sse.NewAttendanceEmitter(env.Logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), req.Header.Get("X-Caller"))))
		})
	})
	NewHandler(svc, env.Logger).RegisterRoutes(r)
	NewSSEHandler(env.Logger, emitter, env.Service).RegisterRoutes(r)

	key, err := signature.GenerateKey()
	require.NoError(t, err)
	payload := []byte(`{"event_segment_ids":[0]}`)
	claim := models.CheckInClaim{
		TicketAddress: guest,
		SignedPayload: payload,
		Signature:     signature.SignClaim(key, guest, payload),
		PublicKey:     key.PubKey().SerializeCompressed(),
	}
	return fixture{env: env, event: ev, emitter: emitter, router: r, claim: claim}
}

func (f fixture) do(t *testing.T, method, path, caller string, body any) (*httptest.ResponseRecorder, utils.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Caller", caller)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp utils.APIResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestCheckIn(t *testing.T) {
	f := setup(t)

	w, resp := f.do(t, http.MethodPost, "/events/"+f.event.ID+"/checkins", ledgertest.Usher, f.claim)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, resp.Success)

	w, resp = f.do(t, http.MethodPost, "/events/"+f.event.ID+"/checkins", ledgertest.Usher, f.claim)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_checked_in", resp.Code)

	w, resp = f.do(t, http.MethodGet, "/events/"+f.event.ID+"/attendance/"+guest+"?segment=0", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]any)["checked_in"])
}

func TestCheckIn_ForbiddenCodesMatch(t *testing.T) {
	f := setup(t)

	w, notUsher := f.do(t, http.MethodPost, "/events/"+f.event.ID+"/checkins", "stranger", f.claim)
	assert.Equal(t, http.StatusForbidden, w.Code)

	bad := f.claim
	bad.Signature = append([]byte{}, bad.Signature...)
	bad.Signature[5] ^= 0x01
	w, badSig := f.do(t, http.MethodPost, "/events/"+f.event.ID+"/checkins", ledgertest.Usher, bad)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, notUsher.Code, badSig.Code)

	w, resp := f.do(t, http.MethodGet, "/events/"+f.event.ID+"/attendance/"+guest, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp.Data.([]any)[0].(map[string]any)["checked_in"])
}

func TestScan(t *testing.T) {
	f := setup(t)

	text, err := qr.Payload(f.claim)
	require.NoError(t, err)
	w, _ := f.do(t, http.MethodPost, "/events/"+f.event.ID+"/checkins/scan", ledgertest.Usher, map[string]string{"qr": text})
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp := f.do(t, http.MethodPost, "/events/"+f.event.ID+"/checkins/scan", ledgertest.Usher, map[string]string{"qr": "garbage"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_checkin_payload", resp.Code)
}

func TestClaimQR(t *testing.T) {
	f := setup(t)

	w, _ := f.do(t, http.MethodPost, "/events/"+f.event.ID+"/claims/qr", guest, f.claim)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestStream_UshersOnly(t *testing.T) {
	f := setup(t)

	w, resp := f.do(t, http.MethodGet, "/events/"+f.event.ID+"/checkins/stream", "stranger", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", resp.Code)
}

func TestStream_DeliversCheckIns(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/"+f.event.ID+"/checkins/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-Caller", ledgertest.Usher)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	lines := bufio.NewScanner(res.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: connected", lines.Text())

	require.Eventually(t, func() bool { return f.emitter.ClientCount(f.event.ID) == 1 }, time.Second, 10*time.Millisecond)
	f.emitter.Emit(models.CheckInResult{EventID: f.event.ID, TicketAddress: guest, Segments: []uint64{0}})

	var got []string
	for lines.Scan() {
		if lines.Text() == "" {
			continue
		}
		got = append(got, lines.Text())
		if strings.HasPrefix(lines.Text(), "data: {\"event_id\"") {
			break
		}
	}
	assert.Contains(t, got, "event: checkin")
	assert.Contains(t, got[len(got)-1], guest)
}
