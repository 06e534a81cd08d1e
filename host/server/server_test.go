package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dccwave/core"
)

type fakeTarget struct {
	status   Status
	commands []string
}

func (f *fakeTarget) Status() Status {
	return f.status
}

func (f *fakeTarget) Execute(cmd string) []string {
	f.commands = append(f.commands, cmd)
	if cmd == "D RAM" {
		return []string{"<* Free memory=1234 *>"}
	}
	return []string{"<X>"}
}

func newTestServer() (*Server, *fakeTarget) {
	target := &fakeTarget{status: Status{
		Name:       "test",
		MAC:        "12:20:30:40:50:60",
		FreeMemory: 2048,
		Uptime:     1500 * time.Millisecond,
		ISR:        core.ISRStats{Count: 25862, MaxTicks: 190, Overruns: 2, PeriodTicks: 928},
		PWMActive:  true,
		Analog:     []AnalogReading{{Pin: 54, Value: 17}},
	}}
	return New(Config{Host: "127.0.0.1"}, zerolog.Nop(), target), target
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, line := range []string{
		"dccwave_free_memory_min_bytes 2048",
		"dccwave_isr_total 25862",
		"dccwave_isr_overruns_total 2",
		"dccwave_period_ticks 928",
		"dccwave_pwm_active 1",
		`dccwave_analog_value{pin="54"} 17`,
		"dccwave_uptime_seconds 1.5",
	} {
		assert.Contains(t, body, line)
	}
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "test", got.Name)
	assert.Equal(t, 2048, got.FreeMemory)
	assert.Equal(t, "2.0 KiB", got.FreeMemoryText)
	assert.Equal(t, "1.5s", got.UptimeText)
	assert.Equal(t, uint32(928), got.ISR.PeriodTicks)
}

func TestFreeMemoryNotSampled(t *testing.T) {
	srv, target := newTestServer()
	target.status.FreeMemory = -1

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, -1, got.FreeMemory)
	assert.Equal(t, "not sampled", got.FreeMemoryText)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dccwave_free_memory_min_bytes ")
	assert.Contains(t, rec.Body.String(), "dccwave_isr_total 25862")
}

func TestConsole(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		code     int
		command  string
		expected []string
	}{
		{"bare", "D RAM", http.StatusOK, "D RAM", []string{"<* Free memory=1234 *>"}},
		{"framed", "<D RAM>\n", http.StatusOK, "D RAM", []string{"<* Free memory=1234 *>"}},
		{"unknown", "Q", http.StatusOK, "Q", []string{"<X>"}},
		{"empty", "  ", http.StatusBadRequest, "", nil},
		{"too long", strings.Repeat("A", maxConsoleBody+1), http.StatusRequestEntityTooLarge, "", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv, target := newTestServer()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/console", strings.NewReader(tc.body))
			srv.Handler().ServeHTTP(rec, req)

			require.Equal(t, tc.code, rec.Code)
			if tc.code != http.StatusOK {
				assert.Empty(t, target.commands)
				return
			}
			var got consoleResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tc.command, got.Command)
			assert.Equal(t, tc.expected, got.Frames)
		})
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
