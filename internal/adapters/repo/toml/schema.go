package toml

import "fmt"

const (
	currentAttemptsVersion = 1
	currentToolsVersion    = 1
)

type attemptsFileSchema struct {
	Version    int             `toml:"version"`
	NextSerial int64           `toml:"next_serial"`
	Attempts   []attemptSchema `toml:"attempts"`
}

func (s *attemptsFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentAttemptsVersion
	}
	if s.NextSerial == 0 {
		s.NextSerial = 1
	}
	for _, a := range s.Attempts {
		if a.Serial >= s.NextSerial {
			s.NextSerial = a.Serial + 1
		}
	}
}

func (s attemptsFileSchema) validateVersion() error {
	if s.Version > currentAttemptsVersion {
		return fmt.Errorf("unsupported attempts schema version %d (current %d)", s.Version, currentAttemptsVersion)
	}
	return nil
}

type attemptSchema struct {
	Serial       int64              `toml:"serial"`
	CreatedAt    string             `toml:"created_at"`
	FileName     string             `toml:"file_name"`
	FileSaved    bool               `toml:"file_saved"`
	OutputSaved  bool               `toml:"output_saved"`
	Score        int                `toml:"score"`
	ErrorCode    int                `toml:"error_code"`
	ResourceUser resourceUserSchema `toml:"resource_user"`
	// Original is omitted unless the attempt reassessed another user's file.
	Original *resourceUserSchema `toml:"original,omitempty"`
}

type resourceUserSchema struct {
	ID             string `toml:"id"`
	UserID         string `toml:"user_id"`
	ToolName       string `toml:"tool"`
	ToolKeyID      string `toml:"tool_key"`
	ResourceLinkID string `toml:"resource_link,omitempty"`
	ContextID      string `toml:"context,omitempty"`
}

type toolsFileSchema struct {
	Version int          `toml:"version"`
	Tools   []toolSchema `toml:"tools"`
	Keys    []keySchema  `toml:"keys"`
}

func (s *toolsFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentToolsVersion
	}
}

func (s toolsFileSchema) validateVersion() error {
	if s.Version > currentToolsVersion {
		return fmt.Errorf("unsupported tools schema version %d (current %d)", s.Version, currentToolsVersion)
	}
	return nil
}

type toolSchema struct {
	Name             string           `toml:"name"`
	DataDir          string           `toml:"data_dir"`
	CorrectorPath    string           `toml:"corrector"`
	Runner           string           `toml:"runner"`
	DeliveryPassword string           `toml:"delivery_password,omitempty"`
	Enabled          bool             `toml:"enabled"`
	EnabledFrom      string           `toml:"enabled_from,omitempty"`
	EnabledUntil     string           `toml:"enabled_until,omitempty"`
	Outcome          bool             `toml:"outcome"`
	ExtraArgs        []string         `toml:"extra_args,omitempty"`
	PrivilegedArgs   []string         `toml:"privileged_args,omitempty"`
	Counter          int64            `toml:"counter"`
	Config           toolConfigSchema `toml:"config"`
}

type toolConfigSchema struct {
	MaxConcurrentUsers     int    `toml:"max_concurrent_users"`
	KeepFiles              bool   `toml:"keep_files"`
	KeepOutput             bool   `toml:"keep_output"`
	ManageAttempts         bool   `toml:"manage_attempts"`
	MaxAttempts            int    `toml:"max_attempts"`
	MaxAttemptsPerFileName bool   `toml:"max_attempts_per_file_name"`
	InputFilePattern       string `toml:"input_file_pattern,omitempty"`
	MaxUploadKB            int    `toml:"max_upload_kb,omitempty"`
	CommandEnabled         bool   `toml:"command_enabled"`
	CommandFileName        string `toml:"command_file_name,omitempty"`
	TextEnabled            bool   `toml:"text_enabled"`
	TextFileName           string `toml:"text_file_name,omitempty"`
}

type keySchema struct {
	ID          string `toml:"id"`
	Tool        string `toml:"tool"`
	ConsumerKey string `toml:"consumer_key"`
}
