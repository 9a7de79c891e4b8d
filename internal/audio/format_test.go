package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/linuxmatters/jivebeat/internal/audio/audiotest"
)

func TestSniff(t *testing.T) {
	testCases := []struct {
		name string
		head []byte
		want Format
	}{
		{"wav", []byte("RIFF\x24\x08\x00\x00WAVEfmt "), FormatWAV},
		{"aiff", []byte("FORM\x00\x00\x10\x00AIFFCOMM"), FormatAIFF},
		{"aifc", []byte("FORM\x00\x00\x10\x00AIFCFVER"), FormatAIFF},
		{"flac", []byte("fLaC\x00\x00\x00\x22"), FormatFLAC},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A "), FormatM4A},
		{"mp3 with id3", []byte("ID3\x04\x00\x00\x00\x00"), FormatMP3},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x64}, FormatMP3},
		{"adts", []byte{0xFF, 0xF1, 0x50, 0x80}, FormatAAC},
		{"riff but not wave", []byte("RIFF\x24\x08\x00\x00AVI LIST"), FormatUnknown},
		{"text", []byte("hello world!"), FormatUnknown},
		{"empty", nil, FormatUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sniff(bytes.NewReader(tc.head)); got != tc.want {
				t.Errorf("sniff = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	testCases := []struct {
		input string
		want  Format
	}{
		{"wav", FormatWAV},
		{".WAV", FormatWAV},
		{"mp3", FormatMP3},
		{"flac", FormatFLAC},
		{"aif", FormatAIFF},
		{"m4a", FormatM4A},
		{"aac", FormatAAC},
		{"ogg", FormatUnknown},
		{"", FormatUnknown},
	}

	for _, tc := range testCases {
		if got := ParseFormat(tc.input); got != tc.want {
			t.Errorf("ParseFormat(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

// TestIsSupported_AllowList verifies every advertised format is accepted by
// extension and an arbitrary extension is rejected.
func TestIsSupported_AllowList(t *testing.T) {
	dir := t.TempDir()
	for _, f := range SupportedFormats() {
		path := filepath.Join(dir, "track."+f.String())
		if !IsSupported(path) {
			t.Errorf("IsSupported(%s) = false, want true", filepath.Base(path))
		}
		if ParseFormat(f.String()) != f {
			t.Errorf("ParseFormat(%q) does not round-trip", f.String())
		}
	}

	for _, name := range []string{"track.xyz", "track", "track.ogg", "track.txt"} {
		if IsSupported(filepath.Join(dir, name)) {
			t.Errorf("IsSupported(%s) = true, want false", name)
		}
	}
}

// TestIsSupported_ChecksSignature verifies an existing file must carry a
// matching header, not just a matching extension.
func TestIsSupported_ChecksSignature(t *testing.T) {
	dir := t.TempDir()

	wavPath := filepath.Join(dir, "real.wav")
	if err := audiotest.WriteWAV(wavPath, audiotest.Sine(440, 0.5, 0.1, 44100), 44100, 1); err != nil {
		t.Fatal(err)
	}
	if !IsSupported(wavPath) {
		t.Error("real WAV reported unsupported")
	}

	fakeFLAC := filepath.Join(dir, "fake.flac")
	if err := os.WriteFile(fakeFLAC, []byte("definitely not flac"), 0o644); err != nil {
		t.Fatal(err)
	}
	if IsSupported(fakeFLAC) {
		t.Error("text file with .flac extension reported supported")
	}
}

// TestDetectFormat_SignatureWins verifies a WAV saved with the wrong extension
// is still routed to the WAV decoder.
func TestDetectFormat_SignatureWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mislabelled.mp3")
	if err := audiotest.WriteWAV(path, audiotest.Sine(440, 0.5, 0.1, 44100), 44100, 1); err != nil {
		t.Fatal(err)
	}

	got, err := DetectFormat(path)
	if err != nil {
		t.Fatalf("DetectFormat failed: %v", err)
	}
	if got != FormatWAV {
		t.Errorf("DetectFormat = %s, want wav", got)
	}
}

func TestFormat_String(t *testing.T) {
	if FormatFLAC.String() != "flac" {
		t.Errorf("FormatFLAC.String() = %q", FormatFLAC.String())
	}
	if Format(99).String() != "Format(99)" {
		t.Errorf("Format(99).String() = %q", Format(99).String())
	}
	text, err := FormatM4A.MarshalText()
	if err != nil || string(text) != "m4a" {
		t.Errorf("MarshalText = %q, %v", text, err)
	}
}
