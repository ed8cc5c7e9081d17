package fs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/crashship/internal/domain"
	"github.com/bft-labs/crashship/pkg/crashfile"
)

// UploadLogFile implements ports.UploadLog as a line-oriented file:
//
//	upload_time,report_id,local_id
//
// with upload_time in unix seconds.
type UploadLogFile struct {
	dir string
}

// NewUploadLogFile returns the upload log living in the crash directory dir.
func NewUploadLogFile(dir string) *UploadLogFile {
	return &UploadLogFile{dir: dir}
}

// Append adds one record. Records are appended with O_APPEND, so a crash mid-write
// can at worst leave a torn last line, which Read skips.
func (l *UploadLogFile) Append(ctx context.Context, rec domain.UploadRecord) error {
	if strings.ContainsAny(rec.ReportID, ",\n") || strings.ContainsAny(rec.LocalID, ",\n") {
		return fmt.Errorf("upload log: invalid record %q/%q", rec.ReportID, rec.LocalID)
	}
	f, err := os.OpenFile(l.Path(), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%d,%s,%s\n", rec.UploadTime.Unix(), rec.ReportID, rec.LocalID)
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read returns every well-formed record, newest first.
// Returns nil and no error if the log does not exist yet.
func (l *UploadLogFile) Read(ctx context.Context) ([]domain.UploadRecord, error) {
	data, err := os.ReadFile(l.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var recs []domain.UploadRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		rec, ok := parseUploadLine(sc.Text())
		if ok {
			recs = append(recs, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	// The file is chronological; later lines win ties.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].UploadTime.After(recs[j].UploadTime)
	})
	return recs, nil
}

// Path returns the full path to the upload log.
func (l *UploadLogFile) Path() string {
	return filepath.Join(l.dir, crashfile.UploadLogName)
}

func parseUploadLine(line string) (domain.UploadRecord, bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 2 || parts[1] == "" {
		return domain.UploadRecord{}, false
	}
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return domain.UploadRecord{}, false
	}
	rec := domain.UploadRecord{
		UploadTime: time.Unix(secs, 0),
		ReportID:   parts[1],
	}
	if len(parts) > 2 {
		rec.LocalID = parts[2]
	}
	return rec, true
}
