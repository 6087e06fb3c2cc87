package credentials

import (
	"os"
	"path/filepath"

	"github.com/goldmansoap/findmycat-agent/pkg/file"
)

// ClientConfig holds the pairing credentials persisted between runs. A
// non-empty token means the agent is paired.
type ClientConfig struct {
	Token    string `json:"token,omitempty"`
	Server   string `json:"server,omitempty"`
	PairCode string `json:"pairCode,omitempty"`
}

// StoreInterface defines methods for managing the persisted credentials.
type StoreInterface interface {
	Load() error
	Save(token, server, pairCode string) error
	GetToken() string
	GetServer() string
	GetPairCode() string
	IsPaired() bool
}

// Store manages the credential file and its associated file operations.
type Store struct {
	ConfigFile string
	Config     ClientConfig
	fileOps    file.FileOperations
}

// NewStore initializes a new credential Store backed by the given file path.
func NewStore(filePath string, fileOps file.FileOperations) StoreInterface {
	return &Store{
		ConfigFile: filePath,
		fileOps:    fileOps,
		Config:     ClientConfig{},
	}
}

// Load reads the credential file and populates the Config field. A missing,
// unreadable or malformed file is not an error: it just means no saved
// credentials yet, so Load falls back to an empty config.
func (s *Store) Load() error {
	if err := s.fileOps.ReadJsonFile(s.ConfigFile, &s.Config); err != nil {
		s.Config = ClientConfig{}
	}
	return nil
}

// Save updates the in-memory credentials and writes them back to the file,
// creating the containing directory if needed. The write goes through a temp
// file and rename so the credential file is never left half-written.
func (s *Store) Save(token, server, pairCode string) error {
	s.Config = ClientConfig{
		Token:    token,
		Server:   server,
		PairCode: pairCode,
	}

	if err := os.MkdirAll(filepath.Dir(s.ConfigFile), 0700); err != nil {
		return err
	}
	return s.fileOps.WriteJsonFile(s.ConfigFile, s.Config)
}

// GetToken returns the saved auth token, empty if unpaired.
func (s *Store) GetToken() string {
	return s.Config.Token
}

// GetServer returns the saved server URL override, if any.
func (s *Store) GetServer() string {
	return s.Config.Server
}

// GetPairCode returns the pairing code the token was claimed with.
func (s *Store) GetPairCode() string {
	return s.Config.PairCode
}

// IsPaired reports whether a non-empty token is present.
func (s *Store) IsPaired() bool {
	return s.Config.Token != ""
}
