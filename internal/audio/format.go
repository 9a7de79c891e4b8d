package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a supported audio container
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
	FormatFLAC
	FormatAIFF
	FormatM4A
	FormatAAC
)

var formatNames = map[Format]string{
	FormatUnknown: "unknown",
	FormatWAV:     "wav",
	FormatMP3:     "mp3",
	FormatFLAC:    "flac",
	FormatAIFF:    "aiff",
	FormatM4A:     "m4a",
	FormatAAC:     "aac",
}

// extensions maps lower-case file extensions onto formats
var extensions = map[string]Format{
	".wav":  FormatWAV,
	".wave": FormatWAV,
	".mp3":  FormatMP3,
	".flac": FormatFLAC,
	".aiff": FormatAIFF,
	".aif":  FormatAIFF,
	".aifc": FormatAIFF,
	".m4a":  FormatM4A,
	".mp4":  FormatM4A,
	".aac":  FormatAAC,
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// MarshalText encodes the format as its short name.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText accepts any name or extension ParseFormat does, plus
// "unknown".
func (f *Format) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" || s == formatNames[FormatUnknown] {
		*f = FormatUnknown
		return nil
	}
	v := ParseFormat(s)
	if v == FormatUnknown {
		return fmt.Errorf("unknown audio format %q", s)
	}
	*f = v
	return nil
}

// SupportedFormats returns the allow-list in a fixed order.
func SupportedFormats() []Format {
	return []Format{FormatWAV, FormatMP3, FormatFLAC, FormatAIFF, FormatM4A, FormatAAC}
}

// ParseFormat maps a name or extension ("flac", ".FLAC") to a Format.
func ParseFormat(s string) Format {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	return extensions[s]
}

// FormatFromPath returns the format implied by the file extension.
func FormatFromPath(path string) Format {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// IsSupported reports whether path names a supported format. When the file
// exists its header must also match; otherwise only the extension is checked.
func IsSupported(path string) bool {
	byExt := FormatFromPath(path)
	if byExt == FormatUnknown {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	return compatible(byExt, sniff(f))
}

// DetectFormat reads the container signature and reconciles it with the
// extension. The signature wins when both are known and disagree, so a
// mislabelled WAV still decodes.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	bySig := sniff(f)
	byExt := FormatFromPath(path)

	switch {
	case bySig != FormatUnknown:
		if byExt == FormatAAC && bySig == FormatM4A {
			return FormatM4A, nil
		}
		return bySig, nil
	case byExt == FormatMP3 || byExt == FormatAAC:
		// Frame-synced streams can start with junk before the first header
		return byExt, nil
	default:
		return FormatUnknown, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
}

// sniff identifies a container from its first bytes.
func sniff(r io.Reader) Format {
	head := make([]byte, 12)
	n, _ := io.ReadFull(r, head)
	head = head[:n]

	switch {
	case len(head) >= 12 && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return FormatWAV
	case len(head) >= 12 && bytes.Equal(head[0:4], []byte("FORM")) &&
		(bytes.Equal(head[8:12], []byte("AIFF")) || bytes.Equal(head[8:12], []byte("AIFC"))):
		return FormatAIFF
	case len(head) >= 4 && bytes.Equal(head[0:4], []byte("fLaC")):
		return FormatFLAC
	case len(head) >= 8 && bytes.Equal(head[4:8], []byte("ftyp")):
		return FormatM4A
	case len(head) >= 3 && bytes.Equal(head[0:3], []byte("ID3")):
		return FormatMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xF6 == 0xF0:
		// ADTS sync word with layer bits zero
		return FormatAAC
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}

func compatible(byExt, bySig Format) bool {
	switch {
	case bySig == FormatUnknown:
		// Headerless MP3/AAC streams have no reliable magic
		return byExt == FormatMP3 || byExt == FormatAAC
	case byExt == FormatAAC && bySig == FormatM4A:
		return true
	default:
		return byExt == bySig
	}
}
