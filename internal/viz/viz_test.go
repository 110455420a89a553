package viz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/internal/controller"
	"github.com/signalsfoundry/territory-controller/model"
)

type staticSource struct {
	snap *controller.Snapshot
}

func (s staticSource) Snapshot() *controller.Snapshot { return s.snap }

func testSnapshot() *controller.Snapshot {
	return &controller.Snapshot{
		Arena:      "scenario",
		MatchTime:  3 * time.Second,
		Claimants:  []model.ClaimantInfo{{ID: model.Zone0}, {ID: model.Zone1}},
		Stations:   []model.StationCode{"EY", "PN"},
		Owners:     map[model.StationCode]model.Claimant{"EY": model.Unclaimed, "PN": model.Zone0},
		LockCounts: map[model.StationCode]int{},
		Attached: map[model.Claimant][]model.StationCode{
			model.Zone0: {"PN"},
		},
	}
}

func TestOwnershipEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewHub(nil), staticSource{snap: testSnapshot()}, nil, nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/ownership")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body OwnershipResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Owners["PN"] != 0 || body.Owners["EY"] != -1 || body.MatchTime != 3 {
		t.Fatalf("body = %+v", body)
	}
	if len(body.Attached["ZONE_0"]) != 1 || body.Scores["ZONE_0"] != 1 || body.Scores["ZONE_1"] != 0 {
		t.Fatalf("attached/scores = %v / %v", body.Attached, body.Scores)
	}
}

func TestOwnershipEndpointBeforeStart(t *testing.T) {
	rr := httptest.NewRecorder()
	NewServer(NewHub(nil), staticSource{}, nil, nil).Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ownership", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestHealthzAndMetricsRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("territory_broadcasts_total 1"))
	})
	router := NewServer(NewHub(nil), nil, metrics, nil).Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("/healthz = %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "territory_broadcasts_total") {
		t.Fatalf("/metrics body = %q", rr.Body.String())
	}
}

func TestWebsocketStreamsFrames(t *testing.T) {
	hub := NewHub(nil)
	hub.PublishFrame(core.Frame{MatchTime: 1})
	srv := httptest.NewServer(NewServer(hub, nil, nil, nil).Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	read := func() Message {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != "frame" || msg.Data.MatchTime != 1 {
		t.Fatalf("initial message = %+v", msg)
	}

	hub.PublishFrame(core.Frame{
		MatchTime: 2,
		Stations:  []core.StationColour{{Station: "PN", Owner: model.Zone0, Colour: "#ff0000"}},
	})
	msg := read()
	if msg.Data.MatchTime != 2 || len(msg.Data.Stations) != 1 || msg.Data.Stations[0].Colour != "#ff0000" {
		t.Fatalf("second message = %+v", msg)
	}
}

func TestHubDropsFramesForLaggingWatcher(t *testing.T) {
	hub := NewHub(nil)
	id, ch := hub.watch()
	defer hub.unwatch(id)

	for i := 0; i < watcherBuffer+5; i++ {
		hub.PublishFrame(core.Frame{MatchTime: float64(i)})
	}
	if len(ch) != watcherBuffer {
		t.Fatalf("buffered %d frames, want %d", len(ch), watcherBuffer)
	}
	if hub.Watchers() != 1 {
		t.Fatalf("Watchers() = %d", hub.Watchers())
	}
}
