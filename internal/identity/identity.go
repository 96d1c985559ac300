package identity

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"codeberg.org/kaibil/xark/internal/errors"
	"codeberg.org/kaibil/xark/internal/facts"
	"codeberg.org/kaibil/xark/internal/logger"
)

var (
	nameAttr  = regexp.MustCompile(`name="([^"]+)"`)
	valueAttr = regexp.MustCompile(`value="([^"]*)"`)
)

// Identity is the laptop's serial number and UUID pair, read once at
// startup from the develop-key file. The pair doubles as the upload
// credentials.
type Identity struct {
	SerialNumber string
	UUID         string
}

// Read parses the develop-key file. Lines carrying a serialnum or uuid
// name/value attribute pair contribute a field; absent or malformed
// entries yield the Empty sentinel rather than a failure. An unreadable
// file is a configuration error.
func Read(path string) (Identity, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return Identity{}, errFactory.Wrap(errors.ErrReadIdentity, err)
	}
	defer f.Close()

	id := Identity{
		SerialNumber: facts.Empty,
		UUID:         facts.Empty,
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "serialnum") && !strings.Contains(line, "uuid") {
			continue
		}

		name := nameAttr.FindStringSubmatch(line)
		value := valueAttr.FindStringSubmatch(line)
		if name == nil || value == nil {
			logger.Debug().Str("line", line).Msg("Skipping malformed identity entry")
			continue
		}

		switch name[1] {
		case "serialnum":
			id.SerialNumber = value[1]
		case "uuid":
			id.UUID = value[1]
		}
	}
	if err := scanner.Err(); err != nil {
		return Identity{}, errFactory.Wrap(errors.ErrReadIdentity, err)
	}

	return id, nil
}
