package synthesis

import (
	"fmt"
	"strings"
)

const (
	wavSuffix      = ".wav"
	shortTokenSize = 8
)

// ReferenceName appends ".wav" to name unless it already ends with it.
func ReferenceName(name string) string {
	if strings.HasSuffix(name, wavSuffix) {
		return name
	}

	return name + wavSuffix
}

// BaseName strips the ".wav" suffix from a reference file name.
func BaseName(referenceName string) string {
	return strings.TrimSuffix(referenceName, wavSuffix)
}

// OutputFilename is the timestamp-only output name. Two requests for the same
// user and reference within one second produce the same name.
func OutputFilename(userID int64, base string, unixSeconds int64) string {
	return fmt.Sprintf("user_%d_%s_%d.wav", userID, base, unixSeconds)
}

// UniqueOutputFilename extends OutputFilename with a token so that concurrent
// requests do not overwrite each other.
func UniqueOutputFilename(userID int64, base string, unixSeconds int64, token string) string {
	return fmt.Sprintf("user_%d_%s_%d_%s.wav", userID, base, unixSeconds, shortToken(token))
}

// TempReferenceFilename names the normalized copy of a reference clip.
func TempReferenceFilename(base, token string) string {
	return fmt.Sprintf("ref_%s_%s.wav", base, token)
}

func shortToken(token string) string {
	compact := strings.ReplaceAll(token, "-", "")
	if len(compact) > shortTokenSize {
		return compact[:shortTokenSize]
	}

	return compact
}
