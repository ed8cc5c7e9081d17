package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logAdapter "github.com/bft-labs/crashship/internal/adapters/log"
	"github.com/bft-labs/crashship/internal/domain"
	"github.com/bft-labs/crashship/internal/ports"
)

var _ ports.ReportSender = (*ReportSender)(nil)

func writeDump(t *testing.T, dir, name, content string) domain.CrashFile {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return domain.NewCrashFile(p, time.Now(), int64(len(content)))
}

type received struct {
	fields  map[string]string
	files   map[string]string
	headers http.Header
}

func recordingServer(t *testing.T, status int, reply string, got *received) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got.headers = r.Header.Clone()
		got.fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			got.fields[k] = v[0]
		}
		got.files = map[string]string{}
		for k, fhs := range r.MultipartForm.File {
			f, err := fhs[0].Open()
			if err != nil {
				t.Errorf("open part %s: %v", k, err)
				continue
			}
			data, _ := io.ReadAll(f)
			f.Close()
			got.files[k] = fhs[0].Filename + ":" + string(data)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSend_Success(t *testing.T) {
	dir := t.TempDir()
	file := writeDump(t, dir, "abc-123.dmp.try1", "MDMP")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc-123.logcat"), []byte("log"), 0o600))

	var got received
	srv := recordingServer(t, http.StatusOK, "  0123456789abcdef\n", &got)

	s := NewReportSender(srv.Client(), logAdapter.NewRecorder())
	id, err := s.Send(context.Background(), file, ports.SendMetadata{
		ServiceURL:     srv.URL + "/cr/report",
		ProductName:    "Crashship",
		ProductVersion: "1.2.3",
		ClientID:       "guid-1",
		Hostname:       "host-a",
		OSArch:         "linux/amd64",
	})
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", id)

	assert.Equal(t, map[string]string{"prod": "Crashship", "ver": "1.2.3", "guid": "guid-1"}, got.fields)
	assert.Equal(t, "abc-123.dmp.try1:MDMP", got.files[minidumpField])
	assert.Equal(t, "abc-123.logcat:log", got.files[sidecarField])
	assert.Equal(t, "host-a", got.headers.Get("X-Crash-Hostname"))
	assert.Equal(t, "linux/amd64", got.headers.Get("X-Crash-OSArch"))
}

func TestSend_WithoutSidecar(t *testing.T) {
	file := writeDump(t, t.TempDir(), "abc.dmp", "MDMP")

	var got received
	srv := recordingServer(t, http.StatusOK, "id-1", &got)

	rec := logAdapter.NewRecorder()
	id, err := NewReportSender(srv.Client(), rec).Send(context.Background(), file, ports.SendMetadata{ServiceURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.NotContains(t, got.files, sidecarField)
	assert.Empty(t, got.fields)
	assert.Zero(t, rec.Count("warn"))
}

func TestSend_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusForbidden, true},
		{http.StatusRequestEntityTooLarge, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			file := writeDump(t, t.TempDir(), "abc.dmp", "MDMP")
			var got received
			srv := recordingServer(t, tt.status, "nope", &got)

			_, err := NewReportSender(srv.Client(), logAdapter.NewRecorder()).
				Send(context.Background(), file, ports.SendMetadata{ServiceURL: srv.URL})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, errors.Is(err, domain.ErrPermanentFailure), err.Error())
		})
	}
}

func TestSend_EmptyReportID(t *testing.T) {
	file := writeDump(t, t.TempDir(), "abc.dmp", "MDMP")
	var got received
	srv := recordingServer(t, http.StatusOK, " \n", &got)

	_, err := NewReportSender(srv.Client(), logAdapter.NewRecorder()).
		Send(context.Background(), file, ports.SendMetadata{ServiceURL: srv.URL})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrPermanentFailure))
}

func TestSend_MissingDump(t *testing.T) {
	dir := t.TempDir()
	file := domain.NewCrashFile(filepath.Join(dir, "gone.dmp"), time.Now(), 0)

	_, err := NewReportSender(http.DefaultClient, logAdapter.NewRecorder()).
		Send(context.Background(), file, ports.SendMetadata{ServiceURL: "http://127.0.0.1:1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSend_NoURL(t *testing.T) {
	file := writeDump(t, t.TempDir(), "abc.dmp", "MDMP")
	_, err := NewReportSender(http.DefaultClient, logAdapter.NewRecorder()).
		Send(context.Background(), file, ports.SendMetadata{})
	require.Error(t, err)
}

func TestSend_TransportError(t *testing.T) {
	file := writeDump(t, t.TempDir(), "abc.dmp", "MDMP")
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewReportSender(http.DefaultClient, logAdapter.NewRecorder()).
		Send(context.Background(), file, ports.SendMetadata{ServiceURL: url})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrPermanentFailure))
}
