// Package doctor checks that the data root and its system directory are
// usable before anything is imported.
package doctor

import (
	"fmt"
	"os"

	"github.com/tormodhaugland/intake/internal/config"
	"github.com/tormodhaugland/intake/internal/fs"
	"github.com/tormodhaugland/intake/internal/history"
)

type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type Report struct {
	DataRoot string  `json:"data_root"`
	Checks   []Check `json:"checks"`
}

// OK reports whether no check failed. Warnings do not count.
func (r Report) OK() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return false
		}
	}
	return true
}

func (r *Report) add(name string, status Status, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: status, Detail: detail})
}

// Run inspects the data root, the system directory and the history journal.
// Checks that depend on an earlier failure are reported as skipped.
func Run(cfg *config.Config) Report {
	report := Report{DataRoot: cfg.DataRoot}

	info, err := os.Stat(cfg.DataRoot)
	switch {
	case os.IsNotExist(err):
		report.add("data_root_exists", StatusFail, "missing (run 'intake doctor --fix')")
	case err != nil:
		report.add("data_root_exists", StatusFail, err.Error())
	default:
		report.add("data_root_exists", StatusOK, "")
	}
	if err != nil {
		report.add("data_root_is_dir", StatusSkip, "")
		report.add("data_root_writable", StatusSkip, "")
		report.add("system_dir", StatusSkip, "")
		report.add("journal", StatusSkip, "")
		return report
	}

	if !info.IsDir() {
		report.add("data_root_is_dir", StatusFail, "not a directory")
		report.add("data_root_writable", StatusSkip, "")
		report.add("system_dir", StatusSkip, "")
		report.add("journal", StatusSkip, "")
		return report
	}
	report.add("data_root_is_dir", StatusOK, "")

	if err := probeWritable(cfg.DataRoot); err != nil {
		report.add("data_root_writable", StatusFail, err.Error())
	} else {
		report.add("data_root_writable", StatusOK, "")
	}

	if !fs.IsDir(cfg.SystemDir()) {
		report.add("system_dir", StatusWarn, "missing (created on first import)")
		report.add("journal", StatusSkip, "")
		return report
	}
	report.add("system_dir", StatusOK, "")

	if ok, _ := fs.Exists(cfg.HistoryPath()); !ok {
		report.add("journal", StatusWarn, "no history recorded yet")
		return report
	}
	db, err := history.Open(cfg.HistoryPath())
	if err != nil {
		report.add("journal", StatusFail, err.Error())
		return report
	}
	db.Close()
	report.add("journal", StatusOK, "")

	return report
}

// probeWritable creates and removes a temporary file inside dir.
func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".intake-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Fix creates the data root, the system directories and the journal schema
// where they are missing. It returns the paths it created.
func Fix(cfg *config.Config) ([]string, error) {
	var created []string

	for _, dir := range []string{cfg.DataRoot, cfg.SystemDir(), cfg.LogsDir()} {
		if fs.IsDir(dir) {
			continue
		}
		if ok, _ := fs.Exists(dir); ok {
			return created, fmt.Errorf("%s exists and is not a directory", dir)
		}
		if err := fs.EnsureDir(dir); err != nil {
			return created, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		created = append(created, dir)
	}

	if ok, _ := fs.Exists(cfg.HistoryPath()); !ok {
		db, err := history.Open(cfg.HistoryPath())
		if err != nil {
			return created, fmt.Errorf("failed to create journal: %w", err)
		}
		db.Close()
		created = append(created, cfg.HistoryPath())
	}

	return created, nil
}
