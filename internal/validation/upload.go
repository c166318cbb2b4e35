package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// AllowedExtensions lists the workbook formats the parser can open. Legacy
// .xls (BIFF) files are not readable and are refused up front.
var AllowedExtensions = []string{".xlsx", ".xlsm"}

// ErrUnsupportedExtension is returned for files outside AllowedExtensions.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// CheckExtension reports whether name carries an allowed extension.
func CheckExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
}

var (
	unsafeChars    = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	dotRuns        = regexp.MustCompile(`\.{2,}`)
	windowsDevices = map[string]bool{
		"CON": true, "AUX": true, "COM1": true, "COM2": true, "COM3": true, "COM4": true,
		"LPT1": true, "LPT2": true, "LPT3": true, "PRN": true, "NUL": true,
	}
)

// SecureFilename reduces a client-supplied file name to a safe ASCII base
// name: accents are folded, path separators become spaces, runs of
// whitespace become underscores, anything outside [A-Za-z0-9_.-] is
// dropped and runs of dots shrink to one. The result may be empty.
func SecureFilename(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	s := b.String()
	s = strings.NewReplacer("/", " ", "\\", " ").Replace(s)
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeChars.ReplaceAllString(s, "")
	s = dotRuns.ReplaceAllString(s, ".")
	s = strings.Trim(s, "._")

	if s != "" {
		stem := strings.ToUpper(strings.SplitN(s, ".", 2)[0])
		if windowsDevices[stem] {
			s = "_" + s
		}
	}
	return s
}
