// Package voices manages the reference clips the model clones voices from.
package voices

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/book-expert/voice-clone-service/internal/audio"
	"github.com/book-expert/voice-clone-service/internal/fsutil"
)

const (
	uploadPattern   = ".upload-*.tmp"
	filePermissions = 0o640
	extWAV          = ".wav"
)

// ErrInvalidVoice is returned when an uploaded clip is not a readable WAV file.
var ErrInvalidVoice = errors.New("voice sample must be a PCM WAV file")

// Voice describes one reference clip. Name is what clients pass as speaker_wav.
type Voice struct {
	Name            string  `json:"name"`
	Filename        string  `json:"filename"`
	Size            string  `json:"size"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Library is a directory of reference clips.
type Library struct {
	dir   string
	now   func() time.Time
	token func() string
}

// NewLibrary returns a Library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir, now: time.Now, token: uuid.NewString}
}

// List returns the readable WAV clips in the library, sorted by name. Files
// that cannot be decoded are skipped, as are names without a lowercase .wav
// extension, which a speaker_wav request could not resolve.
func (l *Library) List() ([]Voice, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read voices directory %s: %w", l.dir, err)
	}

	voices := make([]Voice, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), extWAV) {
			continue
		}

		voice, describeErr := l.describe(entry.Name())
		if describeErr != nil {
			continue
		}

		voices = append(voices, voice)
	}

	sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })

	return voices, nil
}

// Save stores an uploaded clip as user_{id}_{unix}_{token}.wav. The data is
// validated as WAV before it becomes visible in the library.
func (l *Library) Save(userID int64, src io.Reader) (Voice, error) {
	tmp, err := os.CreateTemp(l.dir, uploadPattern)
	if err != nil {
		return Voice{}, fmt.Errorf("failed to create upload file: %w", err)
	}

	tmpPath := tmp.Name()
	defer func() { _ = fsutil.RemoveIfExists(tmpPath) }()

	_, err = io.Copy(tmp, src)
	closeErr := tmp.Close()

	if err != nil {
		return Voice{}, fmt.Errorf("failed to store upload: %w", err)
	}

	if closeErr != nil {
		return Voice{}, fmt.Errorf("failed to close upload: %w", closeErr)
	}

	_, err = audio.Probe(tmpPath)
	if err != nil {
		return Voice{}, fmt.Errorf("%w: %w", ErrInvalidVoice, err)
	}

	filename := fmt.Sprintf("user_%d_%d_%s.wav", userID, l.now().Unix(), strings.ReplaceAll(l.token(), "-", "")[:8])

	err = os.Chmod(tmpPath, filePermissions)
	if err != nil {
		return Voice{}, fmt.Errorf("failed to set upload permissions: %w", err)
	}

	err = os.Rename(tmpPath, filepath.Join(l.dir, filename))
	if err != nil {
		return Voice{}, fmt.Errorf("failed to publish upload as %s: %w", filename, err)
	}

	return l.describe(filename)
}

func (l *Library) describe(filename string) (Voice, error) {
	path := filepath.Join(l.dir, filename)

	info, err := audio.Probe(path)
	if err != nil {
		return Voice{}, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return Voice{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return Voice{
		Name:            strings.TrimSuffix(filename, extWAV),
		Filename:        filename,
		Size:            fsutil.FormatFileSize(stat.Size()),
		SampleRate:      info.SampleRate,
		Channels:        info.Channels,
		DurationSeconds: info.Duration.Seconds(),
	}, nil
}
