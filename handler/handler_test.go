package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/json-mock-server/handler"
	"github.com/stevemurr/json-mock-server/policy"
	"github.com/stevemurr/json-mock-server/store"
)

func setup(t *testing.T) *httptest.Server {
	t.Helper()
	b, err := store.NewBuntBackend(":memory:")
	require.NoError(t, err)
	return serve(t, b, false)
}

func serve(t *testing.T, b store.Backend, readOnly bool) *httptest.Server {
	t.Helper()
	db, err := store.Open(b, store.Defaults())
	require.NoError(t, err)
	ts := httptest.NewServer(handler.New(policy.New(db, readOnly)))
	t.Cleanup(func() {
		ts.Close()
		db.Close()
	})
	return ts
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// call performs a request and returns the body as a JSON string, asserting
// that the transport status is 200.
func call(t *testing.T, method, url string, body any) string {
	t.Helper()
	resp := do(t, method, url, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestRootAndHealth(t *testing.T) {
	ts := setup(t)

	var root map[string]any
	require.NoError(t, json.Unmarshal([]byte(call(t, "GET", ts.URL+"/", nil)), &root))
	assert.Equal(t, "ok", root["status"])
	assert.Equal(t, false, root["readOnly"])

	assert.Equal(t, "OK", call(t, "GET", ts.URL+"/health", nil))
}

func TestPostsCRUD(t *testing.T) {
	ts := setup(t)

	assert.JSONEq(t, `[]`, call(t, "GET", ts.URL+"/posts", nil))

	var created map[string]any
	require.NoError(t, json.Unmarshal([]byte(call(t, "POST", ts.URL+"/posts", map[string]any{"title": "hello"})), &created))
	id, ok := created["id"].(string)
	require.True(t, ok, "post id must be a string")
	assert.Equal(t, "hello", created["title"])

	assert.JSONEq(t, `{"id":"`+id+`","title":"hello"}`, call(t, "GET", ts.URL+"/posts/"+id, nil))

	got := call(t, "PUT", ts.URL+"/posts", map[string]any{"id": id, "body": "text"})
	assert.JSONEq(t, `{"id":"`+id+`","title":"hello","body":"text"}`, got)

	assert.JSONEq(t, `[{"id":"`+id+`","title":"hello","body":"text"}]`, call(t, "DELETE", ts.URL+"/posts/"+id, nil))
	assert.JSONEq(t, `[]`, call(t, "GET", ts.URL+"/posts", nil))
	assert.JSONEq(t, `{"code":500,"msg":"data not found"}`, call(t, "GET", ts.URL+"/posts/"+id, nil))
}

func TestPostsUpdateErrors(t *testing.T) {
	ts := setup(t)
	assert.JSONEq(t, `{"code":500,"msg":"data not found"}`,
		call(t, "PUT", ts.URL+"/posts", map[string]any{"id": "nope"}))
	assert.JSONEq(t, `{"code":500,"msg":"invalid id"}`,
		call(t, "PUT", ts.URL+"/posts", map[string]any{"id": 1}))
}

func TestDataInsertConflict(t *testing.T) {
	ts := setup(t)
	widget := map[string]any{"id": 1, "color": "red"}

	assert.JSONEq(t, `{"code":200,"data":{"id":1,"color":"red"}}`, call(t, "POST", ts.URL+"/data/widgets", widget))
	assert.JSONEq(t, `{"code":500,"msg":"data conflict"}`, call(t, "POST", ts.URL+"/data/widgets", widget))
	assert.JSONEq(t, `{"code":200,"data":[{"id":1,"color":"red"}]}`, call(t, "GET", ts.URL+"/data/widgets", nil))
}

func TestDataRequiresIntegerID(t *testing.T) {
	ts := setup(t)
	for _, body := range []any{
		map[string]any{"color": "red"},
		map[string]any{"id": "1"},
		map[string]any{"id": 1.5},
	} {
		assert.JSONEq(t, `{"code":500,"msg":"invalid id"}`, call(t, "POST", ts.URL+"/data/widgets", body))
	}
}

func TestDataGetByID(t *testing.T) {
	ts := setup(t)
	call(t, "POST", ts.URL+"/custom/widgets", map[string]any{"id": 1, "color": "red"})
	call(t, "POST", ts.URL+"/custom/widgets", map[string]any{"id": 2, "color": "blue"})

	assert.JSONEq(t, `{"code":200,"data":{"id":2,"color":"blue"}}`, call(t, "GET", ts.URL+"/data/widgets?id=2", nil))
	assert.JSONEq(t, `{"code":500,"msg":"data not found"}`, call(t, "GET", ts.URL+"/data/widgets?id=3", nil))
	assert.JSONEq(t, `{"code":500,"msg":"invalid id"}`, call(t, "GET", ts.URL+"/data/widgets?id=abc", nil))
	assert.JSONEq(t, `{"code":200,"data":[]}`, call(t, "GET", ts.URL+"/data/nothing", nil))
}

func TestDataUpdate(t *testing.T) {
	ts := setup(t)
	call(t, "POST", ts.URL+"/data/widgets", map[string]any{"id": 1, "color": "red", "size": "L"})

	assert.JSONEq(t, `{"code":200,"data":{"id":1,"color":"blue","size":"L"}}`,
		call(t, "PUT", ts.URL+"/data/widgets?id=1", map[string]any{"color": "blue"}))
	assert.JSONEq(t, `{"code":200,"data":{"id":1,"color":"green","size":"L"}}`,
		call(t, "PUT", ts.URL+"/data/widgets", map[string]any{"id": 1, "color": "green"}))
	assert.JSONEq(t, `{"code":500,"msg":"data not found"}`,
		call(t, "PUT", ts.URL+"/data/widgets?id=9", map[string]any{"color": "blue"}))
}

func TestDataDelete(t *testing.T) {
	ts := setup(t)
	for _, id := range []int{1, 2, 3} {
		call(t, "POST", ts.URL+"/data/widgets", map[string]any{"id": id})
	}

	assert.JSONEq(t, `{"code":200,"data":{"deleted":1}}`, call(t, "DELETE", ts.URL+"/data/widgets?id=2", nil))
	assert.JSONEq(t, `{"code":200,"data":{"deleted":0}}`, call(t, "DELETE", ts.URL+"/data/widgets?id=2", nil))
	assert.JSONEq(t, `{"code":200,"data":[{"id":1},{"id":3}]}`, call(t, "GET", ts.URL+"/data/widgets", nil))

	assert.JSONEq(t, `{"code":200,"data":{"deleted":2}}`, call(t, "DELETE", ts.URL+"/data/widgets", nil))
	assert.JSONEq(t, `{"code":200,"data":[]}`, call(t, "GET", ts.URL+"/data/widgets", nil))
}

func TestSetRawAndGenericGet(t *testing.T) {
	ts := setup(t)

	body := map[string]any{"config": map[string]any{"theme": "dark"}, "version": 3}
	assert.JSONEq(t, `{"code":200,"data":{"config":{"theme":"dark"},"version":3}}`, call(t, "POST", ts.URL+"/data", body))

	assert.JSONEq(t, `{"code":200,"data":{"theme":"dark"}}`, call(t, "GET", ts.URL+"/config", nil))
	assert.JSONEq(t, `{"code":200,"data":3}`, call(t, "GET", ts.URL+"/version", nil))
	assert.JSONEq(t, `{"code":200,"data":[]}`, call(t, "GET", ts.URL+"/unknown", nil))

	assert.JSONEq(t, `{"code":200,"data":{"cleared":null}}`, call(t, "POST", ts.URL+"/data", `{"cleared":null}`))
	assert.JSONEq(t, `{"code":200,"data":null}`, call(t, "GET", ts.URL+"/cleared", nil))

	assert.JSONEq(t, `{"code":500,"msg":"invalid JSON: expected an object"}`, call(t, "POST", ts.URL+"/custom", "null"))
	assert.Contains(t, call(t, "POST", ts.URL+"/custom", "{not json"), `"code":500`)
}

func TestGenericGetByID(t *testing.T) {
	ts := setup(t)
	call(t, "POST", ts.URL+"/data/users", map[string]any{"id": 7, "name": "ann"})

	assert.JSONEq(t, `{"code":200,"data":{"id":7,"name":"ann"}}`, call(t, "GET", ts.URL+"/users?id=7", nil))
	assert.JSONEq(t, `{"code":500,"msg":"invalid id"}`, call(t, "GET", ts.URL+"/users?id=x", nil))
}

func TestRecordOpOnRawValue(t *testing.T) {
	ts := setup(t)
	call(t, "POST", ts.URL+"/data", map[string]any{"config": map[string]any{"theme": "dark"}})
	resp := call(t, "POST", ts.URL+"/data/config", map[string]any{"id": 1})
	assert.Contains(t, resp, "not a collection")
}

func TestFormEnvelope(t *testing.T) {
	ts := setup(t)

	assert.JSONEq(t, `{"code":200,"data":{"a":1}}`, call(t, "POST", ts.URL+"/form/5", map[string]any{"a": 1}))
	assert.JSONEq(t, `{"code":200,"data":{"a":1}}`, call(t, "GET", ts.URL+"/form?id=5", nil))
	assert.JSONEq(t, `{"code":200,"data":[{"id":5,"form":{"a":1}}]}`, call(t, "GET", ts.URL+"/form", nil))
	assert.JSONEq(t, `{"code":200,"data":[{"id":5,"form":{"a":1}}]}`, call(t, "GET", ts.URL+"/forms", nil))

	// Wholesale replace, not merge.
	call(t, "POST", ts.URL+"/form/5", map[string]any{"b": 2})
	assert.JSONEq(t, `{"code":200,"data":{"b":2}}`, call(t, "GET", ts.URL+"/form?id=5", nil))

	assert.JSONEq(t, `{"code":500,"msg":"form not found"}`, call(t, "GET", ts.URL+"/form?id=6", nil))
	assert.JSONEq(t, `{"code":500,"msg":"invalid id"}`, call(t, "POST", ts.URL+"/form/abc", map[string]any{}))

	assert.JSONEq(t, `{"code":200,"data":[]}`, call(t, "DELETE", ts.URL+"/form/5", nil))
	assert.JSONEq(t, `{"code":200,"data":[]}`, call(t, "GET", ts.URL+"/form", nil))
}

func TestDatasetEnvelope(t *testing.T) {
	ts := setup(t)

	call(t, "POST", ts.URL+"/dataset/1", []any{1, 2, 3})
	assert.JSONEq(t, `{"code":200,"data":[1,2,3]}`, call(t, "GET", ts.URL+"/dataset?id=1", nil))
	assert.JSONEq(t, `{"code":200,"data":[{"id":1,"data":[1,2,3]}]}`, call(t, "GET", ts.URL+"/dataset", nil))
	assert.JSONEq(t, `{"code":500,"msg":"dataset not found"}`, call(t, "GET", ts.URL+"/dataset?id=2", nil))
	call(t, "DELETE", ts.URL+"/dataset/1", nil)
	assert.JSONEq(t, `{"code":200,"data":[]}`, call(t, "GET", ts.URL+"/dataset", nil))
}

func TestWriteGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	b, err := store.NewJsonFileBackend(path)
	require.NoError(t, err)
	ts := serve(t, b, true)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	forbidden := `{"code":500,"msg":"update not allowed in production environment!"}`
	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{"POST", "/posts", map[string]any{"title": "x"}},
		{"PUT", "/posts", map[string]any{"id": "1"}},
		{"DELETE", "/posts/1", nil},
		{"POST", "/data", map[string]any{"k": "v"}},
		{"POST", "/data/widgets", map[string]any{"id": 1}},
		{"PUT", "/data/widgets?id=1", map[string]any{"x": 1}},
		{"DELETE", "/data/widgets", nil},
		{"POST", "/form/1", map[string]any{"a": 1}},
		{"DELETE", "/form/1", nil},
		{"POST", "/dataset/1", map[string]any{"a": 1}},
		{"DELETE", "/dataset/1", nil},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			assert.JSONEq(t, forbidden, call(t, tc.method, ts.URL+tc.path, tc.body))
		})
	}

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Reads still work.
	assert.JSONEq(t, `{"code":200,"data":[]}`, call(t, "GET", ts.URL+"/form", nil))
}

func TestPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	b, err := store.NewBackend("bolt", dir)
	require.NoError(t, err)
	db, err := store.Open(b, store.Defaults())
	require.NoError(t, err)
	ts := httptest.NewServer(handler.New(policy.New(db, false)))
	call(t, "POST", ts.URL+"/data/widgets", map[string]any{"id": 1, "color": "red"})
	ts.Close()
	require.NoError(t, db.Close())

	b, err = store.NewBackend("bolt", dir)
	require.NoError(t, err)
	ts = serve(t, b, false)
	assert.JSONEq(t, `{"code":200,"data":{"id":1,"color":"red"}}`, call(t, "GET", ts.URL+"/data/widgets?id=1", nil))
}

func TestBodyMustBeOneValue(t *testing.T) {
	ts := setup(t)

	assert.JSONEq(t, `{"code":500,"msg":"invalid JSON: unexpected data after top-level value"}`,
		call(t, "POST", ts.URL+"/data", `{"a":1} {"b":2}`))
	assert.Contains(t, call(t, "POST", ts.URL+"/data", `{"a":1} junk`), `"msg":"invalid JSON: invalid character 'j'`)
	assert.JSONEq(t, `{"code":200,"data":[]}`, call(t, "GET", ts.URL+"/a", nil))

	assert.JSONEq(t, `{"code":200,"data":{"a":1}}`, call(t, "POST", ts.URL+"/data", "{\"a\":1}\n"))
}

func TestBodyTooLarge(t *testing.T) {
	b, err := store.NewBuntBackend(":memory:")
	require.NoError(t, err)
	db, err := store.Open(b, store.Defaults())
	require.NoError(t, err)
	defer db.Close()
	h := handler.New(policy.New(db, false))

	body := `{"big":"` + strings.Repeat("a", 3<<20) + `"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/data", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":500,"msg":"request body exceeds 2097152 bytes"}`, rec.Body.String())
	assert.NotContains(t, db.Names(), "big")
}
