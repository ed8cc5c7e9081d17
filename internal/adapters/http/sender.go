package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bft-labs/crashship/internal/domain"
	"github.com/bft-labs/crashship/internal/ports"
	"github.com/bft-labs/crashship/pkg/crashfile"
)

const (
	minidumpField = "upload_file_minidump"
	sidecarField  = "logcat"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 64 << 10
)

// ReportSender implements ports.ReportSender using multipart HTTP uploads.
type ReportSender struct {
	client ports.HTTPClient
	logger ports.Logger
}

// NewReportSender creates a new HTTP report sender.
func NewReportSender(client ports.HTTPClient, logger ports.Logger) *ReportSender {
	return &ReportSender{
		client: client,
		logger: logger,
	}
}

// Send uploads the dump, and its sidecar log when one exists, to meta.ServiceURL.
// The trimmed response body is the report id.
func (s *ReportSender) Send(ctx context.Context, file domain.CrashFile, meta ports.SendMetadata) (string, error) {
	if meta.ServiceURL == "" {
		return "", errors.New("no upload url configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := []struct{ key, value string }{
		{"prod", meta.ProductName},
		{"ver", meta.ProductVersion},
		{"guid", meta.ClientID},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := writer.WriteField(f.key, f.value); err != nil {
			return "", fmt.Errorf("write %s field: %w", f.key, err)
		}
	}

	if err := attachFile(writer, minidumpField, file.Path); err != nil {
		return "", err
	}

	sidecar := filepath.Join(filepath.Dir(file.Path), file.BaseID+crashfile.SidecarSuffix)
	if err := attachFile(writer, sidecarField, sidecar); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("sidecar not attached", ports.Path(sidecar), ports.Err(err))
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, meta.ServiceURL, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	osArch := meta.OSArch
	if osArch == "" {
		osArch = runtime.GOOS + "/" + runtime.GOARCH
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Crash-Hostname", meta.Hostname)
	req.Header.Set("X-Crash-OSArch", osArch)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if permanent(resp.StatusCode) {
			return "", fmt.Errorf("%w: %w", domain.ErrPermanentFailure, err)
		}
		return "", err
	}

	reportID := strings.TrimSpace(string(respBody))
	if reportID == "" {
		return "", errors.New("server returned an empty report id")
	}
	return reportID, nil
}

// permanent reports whether retrying the same upload cannot succeed.
func permanent(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create %s field: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}
	return nil
}
