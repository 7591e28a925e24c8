package config

const (
	defaultStorageDir          = "~/.local/share/lecturenote/storage"
	defaultLogDir              = "~/.local/share/lecturenote/logs"
	defaultInboxDir            = "~/.local/share/lecturenote/inbox"
	defaultAPIBind             = "127.0.0.1:8000"
	defaultBaseURL             = "http://localhost:8000"
	defaultStoreBackend        = StoreBackendSQLite
	defaultFrameIntervalSec    = 1.0
	defaultSimilarityThreshold = 0.85
	defaultInfoChangeRatio     = 1.2
	defaultAnalysisWidth       = 640
	defaultPaddingSec          = 5.0
	defaultLLMProvider         = ProviderNVIDIA
	defaultLLMTemperature      = 0.3
	defaultLLMMaxTokens        = 4096
	defaultLLMTimeoutSeconds   = 120
	defaultLLMReferer          = "https://github.com/lecturenote/lecturenote"
	defaultLLMTitle            = "LectureNote"
	defaultWhisperModel        = "base"
	defaultVADMethod           = "silero"
	defaultNoteTitle           = "Lecture notes"
	defaultDriveFolder         = "LectureNote"
	defaultRedisAddr           = "localhost:6379"
	defaultEventsChannel       = "lecturenote"
	defaultSnapshotTTL         = 86400
	defaultNtfyTimeout         = 10
	defaultURLExpirySeconds    = 3600
	defaultBodyLimitMB         = 2048
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultStreamCapacity      = 512
)

// Store backends.
const (
	StoreBackendSQLite = "sqlite"
	StoreBackendJSON   = "json"
)

// LLM providers.
const (
	ProviderNVIDIA     = "nvidia"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

type providerDefaults struct {
	baseURL     string
	model       string
	visionModel string
	envKeys     []string
}

var llmProviderDefaults = map[string]providerDefaults{
	ProviderNVIDIA: {
		baseURL:     "https://integrate.api.nvidia.com/v1",
		model:       "meta/llama-3.3-70b-instruct",
		visionModel: "meta/llama-3.2-90b-vision-instruct",
		envKeys:     []string{"NVIDIA_API_KEY"},
	},
	ProviderOpenAI: {
		baseURL:     "https://api.openai.com/v1",
		model:       "gpt-4o",
		visionModel: "gpt-4o",
		envKeys:     []string{"OPENAI_API_KEY"},
	},
	ProviderOpenRouter: {
		baseURL:     "https://openrouter.ai/api/v1",
		model:       "google/gemini-3-flash-preview",
		visionModel: "google/gemini-3-flash-preview",
		envKeys:     []string{"OPENROUTER_API_KEY"},
	},
	ProviderGemini: {
		model:       "gemini-1.5-pro",
		visionModel: "gemini-1.5-pro",
		envKeys:     []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	},
}

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:5173",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
			LogDir:     defaultLogDir,
			InboxDir:   defaultInboxDir,
			APIBind:    defaultAPIBind,
			BaseURL:    defaultBaseURL,
		},
		Store: Store{Backend: defaultStoreBackend},
		Detection: Detection{
			FrameIntervalSec:    defaultFrameIntervalSec,
			SimilarityThreshold: defaultSimilarityThreshold,
			InfoChangeRatio:     defaultInfoChangeRatio,
			AnalysisWidth:       defaultAnalysisWidth,
		},
		Alignment: Alignment{PaddingSec: defaultPaddingSec},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			Temperature:    defaultLLMTemperature,
			MaxTokens:      defaultLLMMaxTokens,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
		},
		Transcription: Transcription{
			Model:     defaultWhisperModel,
			VADMethod: defaultVADMethod,
		},
		Notes: Notes{
			DocxEnabled:  true,
			DefaultTitle: defaultNoteTitle,
		},
		Drive: Drive{FolderName: defaultDriveFolder},
		Events: Events{
			RedisAddr:   defaultRedisAddr,
			Channel:     defaultEventsChannel,
			SnapshotTTL: defaultSnapshotTTL,
			NtfyTimeout: defaultNtfyTimeout,
		},
		Ingest: Ingest{AutoProcess: true},
		API: API{
			CORSOrigins:      append([]string(nil), defaultCORSOrigins...),
			URLExpirySeconds: defaultURLExpirySeconds,
			BodyLimitMB:      defaultBodyLimitMB,
		},
		Logging: Logging{
			Format:         defaultLogFormat,
			Level:          defaultLogLevel,
			StreamCapacity: defaultStreamCapacity,
		},
	}
}
