package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newscal/internal/config"
	"newscal/internal/course"
	"newscal/internal/editor"
	"newscal/internal/generator"
	"newscal/internal/msg"
	"newscal/internal/store"
)

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "newscal.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	trans, err := msg.NewTranslator()
	require.NoError(t, err)

	mgr := generator.NewManager(st, cfg.QueueSize)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		mgr.Wait()
	})
	mgr.Start(ctx)

	clock := func() time.Time { return course.Date(2024, time.June, 15) }
	return NewServer(cfg, editor.New(clock), mgr, st, trans).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// buildMarchCourse drives the command endpoints to a block over March 2021
// with one daily issue.
func buildMarchCourse(t *testing.T, h http.Handler) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/course/blocks", `{"action":"add"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/course/blocks/dates",
		`{"index":0,"field":"firstAppearance","value":"1.3.2021"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/course/blocks/dates",
		`{"index":0,"field":"lastAppearance","value":"31.3.2021"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/course/issues",
		`{"action":"add","block":0,"heading":"Morning edition","rule":"FREQ=DAILY"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil)
	rec := doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCourseLifecycle(t *testing.T) {
	h := newTestServer(t, nil)
	buildMarchCourse(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/course", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Blank            bool   `json:"blank"`
		Granularity      string `json:"granularity"`
		Year             int    `json:"year"`
		IndividualIssues int    `json:"individual_issues"`
		Blocks           []struct {
			FirstAppearance string `json:"first_appearance"`
			Issues          []struct {
				Heading string `json:"heading"`
				Rule    string `json:"rule"`
			} `json:"issues"`
		} `json:"blocks"`
		IssueColours []string `json:"issue_colours"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Blank)
	assert.Equal(t, "issues", resp.Granularity)
	assert.Equal(t, 2021, resp.Year)
	assert.Equal(t, 31, resp.IndividualIssues)
	require.Len(t, resp.Blocks, 1)
	assert.Equal(t, "2021-03-01", resp.Blocks[0].FirstAppearance)
	require.Len(t, resp.Blocks[0].Issues, 1)
	assert.Equal(t, "FREQ=DAILY", resp.Blocks[0].Issues[0].Rule)
	assert.Len(t, resp.IssueColours, 10)
}

func TestBlockDateCommandReportsMessages(t *testing.T) {
	h := newTestServer(t, nil)
	buildMarchCourse(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/course/blocks/dates",
		`{"index":0,"field":"lastAppearance","value":"1/2/03"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []struct {
			Key      string `json:"key"`
			Severity string `json:"severity"`
			Text     string `json:"text"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	keys := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		keys = append(keys, m.Key)
		assert.NotEmpty(t, m.Text, "message keys are rendered at the HTTP boundary")
	}
	assert.Contains(t, keys, msg.KeyBlockYearCompleted(msg.FieldLastAppearance))
	assert.Contains(t, keys, msg.KeyBlockNegative)
}

func TestBlockDateCommandRejectsGibberish(t *testing.T) {
	h := newTestServer(t, nil)
	buildMarchCourse(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/course/blocks/dates",
		`{"index":0,"field":"firstAppearance","value":"whenever"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), msg.KeyBlockInvalid(msg.FieldFirstAppearance))
}

func TestDownloadAndUploadRoundTrip(t *testing.T) {
	h := newTestServer(t, nil)
	buildMarchCourse(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/course/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "newspaper.xml")
	exported := rec.Body.String()
	assert.Contains(t, exported, "<firstAppearance>2021-03-01</firstAppearance>")

	rec = doJSON(t, h, http.MethodPost, "/api/course/upload", exported)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/course", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"individual_issues":31`)
}

func TestDownloadOfEmptyCourseConflicts(t *testing.T) {
	h := newTestServer(t, nil)
	rec := doJSON(t, h, http.MethodGet, "/api/course/download", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), msg.KeyCalendarIsEmpty)
}

func TestUploadRejectsOverlappingRanges(t *testing.T) {
	h := newTestServer(t, nil)
	buildMarchCourse(t, h)

	const overlapping = `<course>
    <block>
        <firstAppearance>2020-01-01</firstAppearance>
        <lastAppearance>2020-06-30</lastAppearance>
    </block>
    <block>
        <firstAppearance>2020-06-30</firstAppearance>
        <lastAppearance>2020-12-31</lastAppearance>
    </block>
</course>`
	rec := doJSON(t, h, http.MethodPost, "/api/course/upload", overlapping)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), msg.KeyUploadOverlappingRanges)

	// The editing session is untouched.
	rec = doJSON(t, h, http.MethodGet, "/api/course", "")
	assert.Contains(t, rec.Body.String(), "2021-03-01")
}

func TestSheetEndpoint(t *testing.T) {
	h := newTestServer(t, nil)
	buildMarchCourse(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/course/sheet?year=2021", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Year  int             `json:"year"`
		Cells [31][12]cellDTO `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2021, resp.Year)

	march := int(time.March) - 1
	assert.True(t, resp.Cells[0][march].OnBlock)
	assert.Equal(t, []string{"Morning edition"}, resp.Cells[0][march].Issues)
	assert.False(t, resp.Cells[0][0].OnBlock)
	assert.Empty(t, resp.Cells[29][1].Date, "February 30th does not exist")

	rec = doJSON(t, h, http.MethodGet, "/api/course/sheet?year=elf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplitEndpoint(t *testing.T) {
	h := newTestServer(t, nil)
	buildMarchCourse(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/course/split?granularity=months", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processes":1`)

	rec = doJSON(t, h, http.MethodPost, "/api/course/split?granularity=fortnights", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssueToggleEndpoint(t *testing.T) {
	h := newTestServer(t, nil)
	buildMarchCourse(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/course/issues/toggle",
		`{"block":0,"issue":0,"date":"2021-03-10"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/course", "")
	assert.Contains(t, rec.Body.String(), `"exclusions":["2021-03-10"]`)
	assert.Contains(t, rec.Body.String(), `"individual_issues":30`)

	rec = doJSON(t, h, http.MethodPost, "/api/course/issues/toggle",
		`{"block":0,"issue":9,"date":"2021-03-10"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestICSEndpoint(t *testing.T) {
	h := newTestServer(t, nil)
	buildMarchCourse(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/course.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, 31, strings.Count(rec.Body.String(), "BEGIN:VEVENT"))
}

func TestGenerateEndpoint(t *testing.T) {
	h := newTestServer(t, nil)
	buildMarchCourse(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/generate",
		`{"target":"morgenblatt","granularity":"days"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.JobID)

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = doJSON(t, h, http.MethodGet, "/api/generate/jobs?id="+accepted.JobID, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var state struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		if state.Status == "done" {
			break
		}
		require.NotEqual(t, "failed", state.Status)
		require.True(t, time.Now().Before(deadline), "generation did not finish in time")
		time.Sleep(10 * time.Millisecond)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/processes?generation="+accepted.JobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var processes []processDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &processes))
	assert.Len(t, processes, 31)
	assert.Equal(t, "morgenblatt_2021-03-01", processes[0].Title)
}

func TestGenerateRequiresTargetAndCourse(t *testing.T) {
	h := newTestServer(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/generate", `{"granularity":"days"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/generate", `{"target":"morgenblatt"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "an empty course cannot generate")
}

func TestBasicAuthProtectsEverythingButHealth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "librarian", Password: "secret"}
	h := newTestServer(t, cfg)

	rec := doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/course", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/course", nil)
	req.SetBasicAuth("librarian", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/course", nil)
	req.SetBasicAuth("librarian", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/course", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/course/upload", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
