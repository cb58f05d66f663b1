package chunking

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// separators are tried in order; the first one present in the text decides
// the unit boundaries. The empty separator means single characters.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most ChunkSize characters (runes),
// carrying the last Overlap characters of a closed chunk into the next one.
type Splitter struct {
	ChunkSize int
	Overlap   int

	forcedCuts atomic.Int64
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 700
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// ForcedCuts reports how many units were longer than ChunkSize and had to be
// cut at character level.
func (s *Splitter) ForcedCuts() int64 {
	return s.forcedCuts.Load()
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.ChunkSize {
		return []string{text}
	}

	sep := pickSeparator(text)
	sepRunes := []rune(sep)
	units := s.units(text, sep, len(sepRunes))

	out := make([]string, 0, utf8.RuneCountInString(text)/s.ChunkSize+1)
	var buf []rune
	for _, unit := range units {
		if len(buf) > 0 && len(buf)+len(unit)+len(sepRunes) > s.ChunkSize {
			if chunk := strings.TrimSpace(string(buf)); chunk != "" {
				out = append(out, chunk)
			}
			keep := min(s.Overlap, len(buf))
			room := max(s.ChunkSize-len(unit)-len(sepRunes), 0)
			keep = min(keep, room)
			buf = append([]rune(nil), buf[len(buf)-keep:]...)
		}
		buf = append(buf, unit...)
		buf = append(buf, sepRunes...)
	}
	if chunk := strings.TrimSpace(string(buf)); chunk != "" {
		out = append(out, chunk)
	}
	return out
}

// units splits text on sep and cuts every unit that cannot fit into a chunk
// together with its separator into character windows.
func (s *Splitter) units(text, sep string, sepLen int) [][]rune {
	var raw []string
	if sep == "" {
		raw = strings.Split(text, "")
	} else {
		raw = strings.Split(text, sep)
	}

	window := s.ChunkSize - sepLen
	if window < 1 {
		window = s.ChunkSize
	}

	out := make([][]rune, 0, len(raw))
	forced := 0
	for _, part := range raw {
		r := []rune(part)
		if len(r) <= window {
			out = append(out, r)
			continue
		}
		forced++
		for start := 0; start < len(r); start += window {
			end := min(start+window, len(r))
			out = append(out, r[start:end])
		}
	}
	if forced > 0 {
		s.forcedCuts.Add(int64(forced))
		slog.Warn("chunk_unit_force_split",
			"units", forced,
			"separator", separatorName(sep),
			"chunk_size", s.ChunkSize,
		)
	}
	return out
}

func pickSeparator(text string) string {
	for _, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			return sep
		}
	}
	return ""
}

func separatorName(sep string) string {
	switch sep {
	case "\n\n":
		return `\n\n`
	case "\n":
		return `\n`
	case " ":
		return "space"
	default:
		return "char"
	}
}
