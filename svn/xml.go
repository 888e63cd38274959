package svn

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"
)

// svn emits ISO-8601 dates with microseconds, e.g. 2011-02-25T05:50:15.401914Z.
const svnTimeLayout = "2006-01-02T15:04:05.000000Z"

func parseSvnTime(s string) (time.Time, error) {
	t, err := time.Parse(svnTimeLayout, s)
	if err != nil {
		// Some servers omit the fractional part.
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse svn date %q: %w", s, err)
	}

	return t, nil
}

// FormatTime renders t in the ISO-8601 form svn expects for svn:date.
func FormatTime(t time.Time) string {
	return t.UTC().Format(svnTimeLayout)
}

type xmlLog struct {
	Entries []xmlLogEntry `xml:"logentry"`
}

type xmlLogEntry struct {
	Revision int64        `xml:"revision,attr"`
	Author   string       `xml:"author"`
	Date     string       `xml:"date"`
	Message  string       `xml:"msg"`
	Paths    []xmlLogPath `xml:"paths>path"`
}

type xmlLogPath struct {
	Action      string `xml:"action,attr"`
	Kind        string `xml:"kind,attr"`
	CopyFromPat string `xml:"copyfrom-path,attr"`
	CopyFromRev int64  `xml:"copyfrom-rev,attr"`
	Path        string `xml:",chardata"`
}

// parseLogXML decodes the output of "svn log --xml -v" into entries,
// sorted ascending by revision. The changed-path order within one entry is
// preserved as emitted.
func parseLogXML(data []byte) ([]*LogEntry, error) {
	var doc xmlLog
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot decode svn log xml: %w", err)
	}

	entries := make([]*LogEntry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		entry := &LogEntry{
			Revision: e.Revision,
			Author:   e.Author,
			Message:  e.Message,
		}
		if e.Date != "" {
			t, err := parseSvnTime(e.Date)
			if err != nil {
				return nil, err
			}
			entry.Date = t
		}
		for _, p := range e.Paths {
			if len(p.Action) != 1 {
				return nil, fmt.Errorf("r%d: unknown svn action %q", e.Revision, p.Action)
			}
			action := Action(p.Action[0])
			if !action.Valid() {
				return nil, fmt.Errorf("r%d: unknown svn action %q", e.Revision, p.Action)
			}
			kind, err := ParseNodeKind(p.Kind)
			if err != nil {
				return nil, fmt.Errorf("r%d: %w", e.Revision, err)
			}
			change := PathChange{
				Path:   p.Path,
				Action: action,
				Kind:   kind,
			}
			if p.CopyFromPat != "" {
				change.CopyFrom = &CopyFrom{Path: p.CopyFromPat, Rev: p.CopyFromRev}
			}
			entry.Changes = append(entry.Changes, change)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Revision < entries[j].Revision })

	return entries, nil
}

type xmlInfo struct {
	Entry struct {
		Revision int64  `xml:"revision,attr"`
		URL      string `xml:"url"`
		Repo     struct {
			Root string `xml:"root"`
			UUID string `xml:"uuid"`
		} `xml:"repository"`
	} `xml:"entry"`
}

func parseInfoXML(data []byte) (*Info, error) {
	var doc xmlInfo
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot decode svn info xml: %w", err)
	}

	return &Info{
		URL:      doc.Entry.URL,
		RepoRoot: doc.Entry.Repo.Root,
		UUID:     doc.Entry.Repo.UUID,
		Revision: doc.Entry.Revision,
	}, nil
}

type xmlList struct {
	List struct {
		Entries []struct {
			Kind string `xml:"kind,attr"`
			Name string `xml:"name"`
		} `xml:"entry"`
	} `xml:"list"`
}

func parseListXML(data []byte) ([]DirEntry, error) {
	var doc xmlList
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot decode svn list xml: %w", err)
	}

	entries := make([]DirEntry, 0, len(doc.List.Entries))
	for _, e := range doc.List.Entries {
		kind, err := ParseNodeKind(e.Kind)
		if err != nil {
			return nil, err
		}
		entries = append(entries, DirEntry{Path: e.Name, Kind: kind})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries, nil
}

type xmlStatus struct {
	Target struct {
		Entries []struct {
			Path   string `xml:"path,attr"`
			WCStat struct {
				Item   string `xml:"item,attr"`
				Copied bool   `xml:"copied,attr"`
			} `xml:"wc-status"`
		} `xml:"entry"`
	} `xml:"target"`
}

type statusEntry struct {
	path   string
	item   string // normal, added, deleted, unversioned, missing, ...
	copied bool
}

func parseStatusXML(data []byte) ([]statusEntry, error) {
	var doc xmlStatus
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot decode svn status xml: %w", err)
	}

	entries := make([]statusEntry, 0, len(doc.Target.Entries))
	for _, e := range doc.Target.Entries {
		entries = append(entries, statusEntry{
			path:   e.Path,
			item:   e.WCStat.Item,
			copied: e.WCStat.Copied,
		})
	}

	return entries, nil
}

type xmlPropList struct {
	Target struct {
		Props []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:",chardata"`
		} `xml:"property"`
	} `xml:"target"`
}

func parsePropListXML(data []byte) (map[string]string, error) {
	var doc xmlPropList
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot decode svn proplist xml: %w", err)
	}

	props := make(map[string]string, len(doc.Target.Props))
	for _, p := range doc.Target.Props {
		props[p.Name] = p.Value
	}

	return props, nil
}
