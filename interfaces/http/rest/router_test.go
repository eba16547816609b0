package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"filon/infrastructure/config"
	"filon/infrastructure/di"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type errorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	return newTestServerWith(t, Options{EnableCORS: true})
}

func newTestServerWith(t *testing.T, opts Options) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Environment:           "development",
		StorageBackend:        config.StorageMemory,
		MaxVersions:           50,
		AutosaveNodeThreshold: 10,
		AutosaveInterval:      5 * time.Minute,
		DiffCacheTTL:          time.Minute,
		MergeLockTTL:          30 * time.Second,
		MetricsNamespace:      "Filon",
	}
	log := zap.NewNop()

	snaps := di.ProvideSnapshotRepository(cfg, nil, log)
	branches := di.ProvideBranchRepository(cfg, nil, log)
	cache, cleanup := di.ProvideCache()
	t.Cleanup(cleanup)
	metrics := di.ProvideMetrics(cfg, nil, log)

	commandBus, err := di.ProvideCommandBus(cfg, snaps, branches, di.ProvideEventPublisher(cfg, nil, log),
		di.ProvideLocker(cfg, nil, log), di.ProvideVersioningPolicy(cfg), metrics, di.ProvideTracer(cfg), log)
	require.NoError(t, err)
	queryBus, err := di.ProvideQueryBus(cfg, snaps, branches, cache, metrics, log)
	require.NoError(t, err)

	return NewRouter(commandBus, queryBus, metrics, opts, log).Setup()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealthAndVersionHeaders(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v2", rec.Header().Get("X-API-Version"))

	var status map[string]string
	decodeData(t, rec, &status)
	assert.Equal(t, "healthy", status["status"])

	rec = do(t, h, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &status)
	assert.Equal(t, "ready", status["status"])
}

func TestLegacyRoutesRedirect(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/diff", "{}")
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/api/v2/diff", rec.Header().Get("Location"))
	assert.Equal(t, "true", rec.Header().Get("X-API-Deprecated"))
}

func TestRateLimitedAPI(t *testing.T) {
	h := newTestServerWith(t, Options{RateLimitPerMinute: 1})
	body := `{"old": {"nodes": []}, "new": {"nodes": []}}`

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v2/diff", body).Code)
	rec := do(t, h, http.MethodPost, "/api/v2/diff", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Probes stay outside the quota
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v2/nodes", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Type)
}

func TestEngineDiff(t *testing.T) {
	h := newTestServer(t)
	body := `{
		"old": {"nodes": [{"id": "1", "position": {"x": 0, "y": 0}, "data": {"label": "Goal"}}], "edges": []},
		"new": {"nodes": [
			{"id": "1", "position": {"x": 0, "y": 0}, "data": {"label": "Goal v2"}, "width": 150},
			{"id": "2", "position": {"x": 10, "y": 10}, "data": {"label": "Track"}}
		], "edges": [{"id": "e1-2", "source": "1", "target": "2"}]}
	}`

	rec := do(t, h, http.MethodPost, "/api/v2/diff?format=text", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Summary struct {
			NodesAdded   int `json:"nodesAdded"`
			NodesChanged int `json:"nodesChanged"`
			EdgesAdded   int `json:"edgesAdded"`
		} `json:"summary"`
		Identical bool   `json:"identical"`
		Text      string `json:"text"`
	}
	decodeData(t, rec, &resp)
	assert.Equal(t, 1, resp.Summary.NodesAdded)
	assert.Equal(t, 1, resp.Summary.NodesChanged)
	assert.Equal(t, 1, resp.Summary.EdgesAdded)
	assert.False(t, resp.Identical)
	assert.NotEmpty(t, resp.Text)
}

func TestEngineRejectsBadInput(t *testing.T) {
	h := newTestServer(t)

	t.Run("malformed body", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v2/diff", `{"old": [`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION", decodeError(t, rec).Type)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v2/merge-snapshots",
			`{"base": {"nodes": []}, "incoming": {"nodes": []}, "strategy": "coinflip"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_STRATEGY", decodeError(t, rec).Code)
	})

	t.Run("merge without diff", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v2/merge", `{"base": {"nodes": []}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEngineToleratesLooseStates(t *testing.T) {
	h := newTestServer(t)

	t.Run("dangling edge", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v2/diff",
			`{"old": {"nodes": [], "edges": [{"source": "a", "target": "b"}]}, "new": {"nodes": []}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Summary struct {
				EdgesRemoved int `json:"edgesRemoved"`
			} `json:"summary"`
		}
		decodeData(t, rec, &resp)
		assert.Equal(t, 1, resp.Summary.EdgesRemoved)
	})

	t.Run("non-array nodes and edges", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v2/diff",
			`{"old": {"nodes": {"bad": true}, "edges": "x"}, "new": {"nodes": [{"id": "1", "data": {"label": "Goal"}}]}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Summary struct {
				NodesAdded int `json:"nodesAdded"`
			} `json:"summary"`
		}
		decodeData(t, rec, &resp)
		assert.Equal(t, 1, resp.Summary.NodesAdded)
	})

	t.Run("duplicate ids on merge-snapshots", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v2/merge-snapshots",
			`{"base": {"nodes": [{"id": "1"}, {"id": "1"}]}, "incoming": {"nodes": [{"id": "1"}]}}`)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func TestEngineMerge(t *testing.T) {
	h := newTestServer(t)
	body := `{
		"base": {
			"nodes": [
				{"id": "1", "position": {"x": 0, "y": 0}, "data": {"label": "Goal"}},
				{"id": "2", "position": {"x": 10, "y": 0}, "data": {"label": "Old track"}}
			],
			"edges": [{"source": "1", "target": "2"}],
			"meta": {"savedAt": "2026-10-01T10:00:00Z"}
		},
		"diff": {
			"addedNodes": [{"id": "3", "position": {"x": 20, "y": 0}, "data": {"label": "New track"}}],
			"removedNodes": [{"id": "2"}, {"id": "ghost"}],
			"changedNodes": [
				{"id": "1", "before": {"id": "1", "data": {"label": "Goal"}}, "after": {"id": "1", "position": {"x": 0, "y": 0}, "data": {"label": "Goal v2"}}},
				{"id": "phantom", "after": {"id": "phantom", "data": {"label": "P"}}}
			],
			"addedEdges": [{"source": "1", "target": "3"}],
			"removedEdges": [{"source": "1", "target": "2"}, {"source": "x", "target": "y"}]
		}
	}`

	rec := do(t, h, http.MethodPost, "/api/v2/merge", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		State struct {
			Nodes []struct {
				ID   string `json:"id"`
				Data struct {
					Label string `json:"label"`
				} `json:"data"`
			} `json:"nodes"`
			Edges []struct {
				Source string `json:"source"`
				Target string `json:"target"`
			} `json:"edges"`
			Meta map[string]interface{} `json:"meta"`
		} `json:"state"`
	}
	decodeData(t, rec, &resp)

	labels := map[string]string{}
	for _, n := range resp.State.Nodes {
		labels[n.ID] = n.Data.Label
	}
	assert.Equal(t, map[string]string{"1": "Goal v2", "3": "New track"}, labels)
	require.Len(t, resp.State.Edges, 1)
	assert.Equal(t, "1", resp.State.Edges[0].Source)
	assert.Equal(t, "3", resp.State.Edges[0].Target)
	assert.Equal(t, "2026-10-01T10:00:00Z", resp.State.Meta["savedAt"])
}

func TestEngineMergeSnapshots(t *testing.T) {
	h := newTestServer(t)
	body := `{
		"base": {"nodes": [{"id": "1", "position": {"x": 0, "y": 0}, "data": {"label": "Base"}}]},
		"incoming": {"nodes": [
			{"id": "1", "position": {"x": 0, "y": 0}, "data": {"label": "Incoming"}},
			{"id": "2", "position": {"x": 5, "y": 5}, "data": {"label": "New"}}
		]},
		"strategy": "preferBase"
	}`

	rec := do(t, h, http.MethodPost, "/api/v2/merge-snapshots", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		State struct {
			Nodes []struct {
				ID   string `json:"id"`
				Data struct {
					Label string `json:"label"`
				} `json:"data"`
			} `json:"nodes"`
		} `json:"state"`
		Outcome struct {
			Resolution string            `json:"resolution"`
			Winners    map[string]string `json:"winners"`
		} `json:"outcome"`
	}
	decodeData(t, rec, &resp)
	require.Len(t, resp.State.Nodes, 2)
	labels := map[string]string{}
	for _, n := range resp.State.Nodes {
		labels[n.ID] = n.Data.Label
	}
	assert.Equal(t, "Base", labels["1"])
	assert.Equal(t, "New", labels["2"])
	assert.Equal(t, "preferBase", resp.Outcome.Resolution)
	assert.Equal(t, "base", resp.Outcome.Winners["1"])
}

type branchBody struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	HeadSnapshotID string `json:"headSnapshotId"`
}

type snapshotBody struct {
	ID       string `json:"id"`
	BranchID string `json:"branchId"`
	Version  int    `json:"version"`
	State    struct {
		Nodes []json.RawMessage `json:"nodes"`
	} `json:"state"`
}

func stateJSON(labels ...string) string {
	nodes := make([]string, 0, len(labels))
	for i, l := range labels {
		nodes = append(nodes, `{"id": "`+string(rune('a'+i))+`", "position": {"x": 0, "y": 0}, "data": {"label": "`+l+`"}}`)
	}
	return `{"nodes": [` + strings.Join(nodes, ",") + `], "edges": []}`
}

func TestSnapshotAndBranchWorkflow(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v2/graphs/g1/branches", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var main branchBody
	decodeData(t, rec, &main)
	assert.Equal(t, "main", main.Name)

	save := func(branchID, body string) *httptest.ResponseRecorder {
		return do(t, h, http.MethodPost, "/api/v2/graphs/g1/branches/"+branchID+"/snapshots", body)
	}

	rec = save(main.ID, `{"label": "first", "state": `+stateJSON("Goal")+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var saved struct {
		Saved    bool         `json:"saved"`
		Snapshot snapshotBody `json:"snapshot"`
	}
	decodeData(t, rec, &saved)
	require.True(t, saved.Saved)
	assert.Equal(t, 1, saved.Snapshot.Version)
	first := saved.Snapshot.ID

	// An autosave repeating the head is dropped
	rec = save(main.ID, `{"autosave": true, "state": `+stateJSON("Goal")+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &saved)
	assert.False(t, saved.Saved)

	rec = save(main.ID, `{"state": `+stateJSON("Goal", "Track")+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decodeData(t, rec, &saved)
	assert.Equal(t, 2, saved.Snapshot.Version)
	second := saved.Snapshot.ID

	rec = do(t, h, http.MethodGet, "/api/v2/snapshots/"+first+"/diff/"+second, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var diffResp struct {
		Summary struct {
			NodesAdded int `json:"nodesAdded"`
		} `json:"summary"`
	}
	decodeData(t, rec, &diffResp)
	assert.Equal(t, 1, diffResp.Summary.NodesAdded)

	rec = do(t, h, http.MethodGet, "/api/v2/branches/"+main.ID+"/timeline?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var timeline struct {
		Frames []json.RawMessage `json:"frames"`
	}
	decodeData(t, rec, &timeline)
	assert.Len(t, timeline.Frames, 2)

	rec = do(t, h, http.MethodGet, "/api/v2/branches/"+main.ID+"/timeline?limit=many", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Fork a feature branch from the first snapshot and edit it
	rec = do(t, h, http.MethodPost, "/api/v2/graphs/g1/branches",
		`{"name": "feature", "fromSnapshotId": "`+first+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var feature branchBody
	decodeData(t, rec, &feature)
	assert.Equal(t, first, feature.HeadSnapshotID)

	rec = save(feature.ID, `{"state": `+stateJSON("Goal", "Idea", "Note")+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v2/branches/"+feature.ID+"/merge",
		`{"targetBranchId": "`+main.ID+`", "strategy": "preferIncoming"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var merged struct {
		ResultSnapshotID string     `json:"resultSnapshotId"`
		Target           branchBody `json:"target"`
	}
	decodeData(t, rec, &merged)
	assert.Equal(t, merged.ResultSnapshotID, merged.Target.HeadSnapshotID)

	rec = do(t, h, http.MethodGet, "/api/v2/graphs/g1/branches?status=merged", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list struct {
		Branches []branchBody `json:"branches"`
	}
	decodeData(t, rec, &list)
	require.Len(t, list.Branches, 1)
	assert.Equal(t, feature.ID, list.Branches[0].ID)

	rec = do(t, h, http.MethodPost, "/api/v2/snapshots/"+first+"/restore", `{"branchId": "`+main.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var restored snapshotBody
	decodeData(t, rec, &restored)
	assert.Equal(t, main.ID, restored.BranchID)
	assert.Len(t, restored.State.Nodes, 1)

	rec = do(t, h, http.MethodPost, "/api/v2/branches/"+main.ID+"/prune", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v2/snapshots/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SNAPSHOT_NOT_FOUND", decodeError(t, rec).Code)
}

func TestMergeStoredSnapshots(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v2/graphs/g1/branches", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var main branchBody
	decodeData(t, rec, &main)

	ids := make([]string, 0, 2)
	for _, state := range []string{stateJSON("Goal"), stateJSON("Goal", "Track")} {
		rec = do(t, h, http.MethodPost, "/api/v2/graphs/g1/branches/"+main.ID+"/snapshots", `{"state": `+state+`}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var saved struct {
			Snapshot snapshotBody `json:"snapshot"`
		}
		decodeData(t, rec, &saved)
		ids = append(ids, saved.Snapshot.ID)
	}

	rec = do(t, h, http.MethodPost, "/api/v2/snapshots/merge",
		`{"baseId": "`+ids[0]+`", "incomingId": "`+ids[1]+`", "label": "combined"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result snapshotBody
	decodeData(t, rec, &result)
	assert.Len(t, result.State.Nodes, 2)
	assert.Equal(t, 3, result.Version)

	rec = do(t, h, http.MethodPost, "/api/v2/snapshots/merge", `{"baseId": "`+ids[0]+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
