package decode

import "testing"

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{
			name: "wav riff header",
			data: []byte("RIFF\x24\x08\x00\x00WAVEfmt "),
			want: FormatWAV,
		},
		{
			name: "mp3 id3 tag",
			data: []byte("ID3\x04\x00\x00\x00\x00\x00\x00"),
			want: FormatMP3,
		},
		{
			name: "mp3 frame sync",
			data: []byte{0xFF, 0xFB, 0x90, 0x64, 0x00, 0x00},
			want: FormatMP3,
		},
		{
			name: "ogg container",
			data: []byte("OggS\x00\x02\x00\x00\x00\x00\x00\x00"),
			want: FormatOgg,
		},
		{
			name: "webm ebml header",
			data: []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86, 0x81},
			want: FormatWebM,
		},
		{
			name: "mp4 ftyp box",
			data: []byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'},
			want: FormatMP4,
		},
		{
			name: "flac marker",
			data: []byte("fLaC\x00\x00\x00\x22"),
			want: FormatFLAC,
		},
		{
			name: "unknown defaults to webm",
			data: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
			want: FormatWebM,
		},
		{
			name: "too short defaults to webm",
			data: []byte{0xFF},
			want: FormatWebM,
		},
		{
			name: "riff without wave is not wav",
			data: []byte("RIFF\x24\x08\x00\x00AVI LIST"),
			want: FormatWebM,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.data); got != tt.want {
				t.Errorf("DetectFormat() = %s, want %s", got, tt.want)
			}
		})
	}
}
