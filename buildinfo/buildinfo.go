// Package buildinfo exposes the version information the Go toolchain baked
// into the binary, for stamping logs and diagnostic reports.
package buildinfo

import (
	"log/slog"
	"runtime/debug"
	"time"
)

type Information struct {
	Version   string    `json:"version"`
	Revision  string    `json:"revision"`
	Modified  bool      `json:"modified"`
	GoVersion string    `json:"go_version"`
	Date      time.Time `json:"-"`
}

var Info Information

func init() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	Info = fromBuildInfo(bi)
}

func fromBuildInfo(bi *debug.BuildInfo) Information {
	info := Information{
		Version:   bi.Main.Version,
		GoVersion: bi.GoVersion,
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Revision = setting.Value
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		case "vcs.time":
			info.Date = parseDate(setting.Value)
		}
	}
	return info
}

func parseDate(s string) time.Time {
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return d.UTC()
}

// LogValue implements slog.LogValuer, omitting empty fields so binaries
// built outside version control stay quiet about it.
func (i Information) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 4)
	if i.Version != "" {
		attrs = append(attrs, slog.String("version", i.Version))
	}
	if i.Revision != "" {
		attrs = append(attrs, slog.String("revision", i.Revision))
	}
	if i.GoVersion != "" {
		attrs = append(attrs, slog.String("go_version", i.GoVersion))
	}
	if i.Modified {
		attrs = append(attrs, slog.Bool("modified", true))
	}
	return slog.GroupValue(attrs...)
}
