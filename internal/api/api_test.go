package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/photolog/internal/apperr"
	"github.com/starford/photolog/internal/gallery"
	"github.com/starford/photolog/internal/prefs"
	"github.com/starford/photolog/internal/sse"
	"github.com/starford/photolog/internal/storage"
	"github.com/starford/photolog/internal/testutil"
)

type env struct {
	m      *gallery.Manager
	router http.Handler
	device *testutil.FakeDevice
	sharer *testutil.FakeSharer
	kv     *testutil.FlakyPrefs
	store  *storage.FS
}

// testEnv wires a manager over a temp media dir and an in-memory index.
// An empty token disables auth.
func testEnv(t *testing.T, token string, results ...testutil.DeviceResult) *env {
	t.Helper()
	_, store := testutil.TestMedia(t)
	e := &env{
		device: testutil.NewFakeDevice(results...),
		sharer: &testutil.FakeSharer{},
		kv:     testutil.NewFlakyPrefs(),
		store:  store,
	}
	e.m = gallery.New(store, e.kv,
		gallery.WithDevice(e.device),
		gallery.WithSharer(e.sharer))
	if err := e.m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	e.router = NewRouter(e.m, token != "", token, nil, nil)
	return e
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestCaptureAndGetPhoto(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/photos", CapturePhotoRequest{Title: "Beach"})
	if w.Code != http.StatusCreated {
		t.Fatalf("capture status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[PhotoResponse](t, w)
	if created.Title != "Beach" {
		t.Errorf("title = %q", created.Title)
	}
	if created.MediaURL != "/media/"+filepath.Base(created.Filepath) {
		t.Errorf("mediaUrl = %q", created.MediaURL)
	}

	w = e.do(t, http.MethodGet, "/photos/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := decode[PhotoResponse](t, w); got.ID != created.ID {
		t.Errorf("id = %q", got.ID)
	}
}

func TestCapture_EmptyBodyUsesDefaultTitle(t *testing.T) {
	e := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/photos", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[PhotoResponse](t, w); len(got.Title) < len("Photo ") || got.Title[:6] != "Photo " {
		t.Errorf("title = %q", got.Title)
	}
}

func TestCapture_FromDataURISource(t *testing.T) {
	e := testEnv(t, "")
	src := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testutil.PNG)
	w := e.do(t, http.MethodPost, "/photos", CapturePhotoRequest{Source: src})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[PhotoResponse](t, w)
	if filepath.Ext(got.Filepath) != ".png" {
		t.Errorf("filepath = %q", got.Filepath)
	}
	if e.device.Calls != 0 {
		t.Error("default device used despite explicit source")
	}
}

func TestCapture_LocalPathSourceRejected(t *testing.T) {
	e := testEnv(t, "")
	path := filepath.Join(t.TempDir(), "secret.png")
	if err := os.WriteFile(path, testutil.PNG, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, src := range []string{path, "file://" + filepath.ToSlash(path)} {
		w := e.do(t, http.MethodPost, "/photos", CapturePhotoRequest{Source: src})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, body = %s", src, w.Code, w.Body.String())
		}
		if body := decode[errResponse](t, w); body.Kind != string(apperr.KindValidation) {
			t.Errorf("%s: kind = %q", src, body.Kind)
		}
	}
	if n := len(e.m.Entries()); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
	assets, err := e.store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 0 {
		t.Errorf("assets = %d, want 0", len(assets))
	}
	if e.device.Calls != 0 {
		t.Error("default device used despite explicit source")
	}
}

func TestGetPhoto_NotFoundReportsKind(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodGet, "/photos/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode[errResponse](t, w); body.Kind != string(apperr.KindNotFound) {
		t.Errorf("kind = %q", body.Kind)
	}
}

func TestCapture_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		result testutil.DeviceResult
		want   int
	}{
		{"cancelled", testutil.Cancelled(), http.StatusConflict},
		{"unavailable", testutil.Unavailable(), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := testEnv(t, "", tc.result)
			w := e.do(t, http.MethodPost, "/photos", nil)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestCapture_PersistFailureIs500(t *testing.T) {
	e := testEnv(t, "")
	e.kv.FailSets(true)
	w := e.do(t, http.MethodPost, "/photos", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode[errResponse](t, w); body.Error != "internal error" || body.Kind != string(apperr.KindPersist) {
		t.Errorf("body = %+v", body)
	}
}

func TestCapture_InvalidJSON(t *testing.T) {
	e := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/photos", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestListPhotos(t *testing.T) {
	e := testEnv(t, "")
	for _, title := range []string{"a", "b", "c"} {
		if w := e.do(t, http.MethodPost, "/photos", CapturePhotoRequest{Title: title}); w.Code != http.StatusCreated {
			t.Fatalf("capture %s = %d", title, w.Code)
		}
	}
	w := e.do(t, http.MethodGet, "/photos", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	list := decode[PhotoListResponse](t, w)
	if list.Total != 3 || len(list.Photos) != 3 {
		t.Fatalf("total = %d", list.Total)
	}
}

func TestListPhotos_EmptyIsArray(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodGet, "/photos", nil)
	if !bytes.Contains(w.Body.Bytes(), []byte(`"photos":[]`)) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRenamePhoto(t *testing.T) {
	e := testEnv(t, "")
	created := decode[PhotoResponse](t, e.do(t, http.MethodPost, "/photos", CapturePhotoRequest{Title: "old"}))

	w := e.do(t, http.MethodPatch, "/photos/"+created.ID, RenamePhotoRequest{Title: " new "})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[PhotoResponse](t, w); got.Title != "new" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestRenamePhoto_BlankTitle(t *testing.T) {
	e := testEnv(t, "")
	created := decode[PhotoResponse](t, e.do(t, http.MethodPost, "/photos", nil))

	w := e.do(t, http.MethodPatch, "/photos/"+created.ID, RenamePhotoRequest{Title: "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode[errResponse](t, w); body.Kind != string(apperr.KindValidation) {
		t.Errorf("kind = %q", body.Kind)
	}
}

func TestRenamePhoto_NotFound(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodPatch, "/photos/nope", RenamePhotoRequest{Title: "x"}); w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestDeletePhoto(t *testing.T) {
	e := testEnv(t, "")
	created := decode[PhotoResponse](t, e.do(t, http.MethodPost, "/photos", nil))

	if w := e.do(t, http.MethodDelete, "/photos/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/photos/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/photos/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", w.Code)
	}
}

func TestSharePhoto(t *testing.T) {
	e := testEnv(t, "")
	created := decode[PhotoResponse](t, e.do(t, http.MethodPost, "/photos", CapturePhotoRequest{Title: "Beach"}))

	w := e.do(t, http.MethodPost, "/photos/"+created.ID+"/share", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !decode[ShareResponse](t, w).Shared {
		t.Error("shared = false")
	}
	if p, _ := e.sharer.Last(); p.Title != "Beach" {
		t.Errorf("payload = %+v", p)
	}
}

func TestSharePhoto_Cancelled(t *testing.T) {
	e := testEnv(t, "")
	created := decode[PhotoResponse](t, e.do(t, http.MethodPost, "/photos", nil))
	e.sharer.Err = apperr.ErrShareCancelled

	w := e.do(t, http.MethodPost, "/photos/"+created.ID+"/share", nil)
	if w.Code != http.StatusOK || decode[ShareResponse](t, w).Shared {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestSharePhoto_FailureIs502(t *testing.T) {
	e := testEnv(t, "")
	created := decode[PhotoResponse](t, e.do(t, http.MethodPost, "/photos", nil))
	e.sharer.Err = sse.ErrNoClients

	if w := e.do(t, http.MethodPost, "/photos/"+created.ID+"/share", nil); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d", w.Code)
	}
}

func TestStatus_ReportsLastError(t *testing.T) {
	e := testEnv(t, "")
	_ = e.do(t, http.MethodDelete, "/photos/missing", nil)

	w := e.do(t, http.MethodGet, "/status", nil)
	got := decode[StatusResponse](t, w)
	if got.Busy {
		t.Error("busy = true")
	}
	if got.Kind != string(apperr.KindNotFound) || got.LastError == "" {
		t.Errorf("status = %+v", got)
	}
}

func TestReload_CorruptIndex(t *testing.T) {
	e := testEnv(t, "")
	if err := e.kv.Store.Set(context.Background(), gallery.DefaultIndexKey, "garbage"); err != nil {
		t.Fatal(err)
	}
	if w := e.do(t, http.MethodPost, "/photos/reload", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}

func TestAudit(t *testing.T) {
	e := testEnv(t, "")
	_ = e.do(t, http.MethodPost, "/photos", nil)

	w := e.do(t, http.MethodGet, "/audit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	report := decode[AuditResponse](t, w)
	if report.Entries != 1 || report.Assets != 1 || !report.Clean() {
		t.Errorf("report = %+v", report)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/photos", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret")
	if w := e.do(t, http.MethodGet, "/photos", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/photos", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, store := testutil.TestMedia(t)
	m := gallery.New(store, prefs.NewMemory())
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	router := NewRouter(m, true, "secret", broker, nil)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func mediaRouter(t *testing.T) http.Handler {
	t.Helper()
	_, store := testutil.TestMedia(t)
	r := chi.NewRouter()
	r.Get("/media/{filename}", NewMediaHandler(store).ServeFile)
	return r
}

func TestServeMedia(t *testing.T) {
	e := testEnv(t, "")
	created := decode[PhotoResponse](t, e.do(t, http.MethodPost, "/photos", nil))

	r := chi.NewRouter()
	r.Get("/media/{filename}", NewMediaHandler(e.store).ServeFile)

	req := httptest.NewRequest(http.MethodGet, created.MediaURL, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), testutil.JPEG) {
		t.Error("served content mismatch")
	}
}

func TestServeMedia_NotFound(t *testing.T) {
	r := mediaRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/media/missing.jpeg", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestServeMedia_RejectsNonImage(t *testing.T) {
	r := mediaRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/media/prefs.db", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestServeMedia_TraversalBlocked(t *testing.T) {
	r := mediaRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/media/..%2Fsecret.jpeg", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code == http.StatusOK {
		t.Errorf("traversal served with status %d", w.Code)
	}
}
