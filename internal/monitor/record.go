package monitor

// Kind tells the writer how to log a Record.
type Kind int

const (
	// KindSample is one GetRecord reply.
	KindSample Kind = iota
	// KindConfig is one plugin's plot configuration from the handshake.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindSample:
		return "monitor"
	case KindConfig:
		return "monitorconfig"
	default:
		return "unknown"
	}
}

// Record is one unit of work for the writer.
type Record struct {
	Kind Kind
	Host string
	// Plugin and Config are set for KindConfig.
	Plugin string
	Config string
	// Data is set for KindSample and already carries host and time.
	Data map[string]string
}

// Sink receives records in dequeue order. *xmllog.StatsLogger implements it.
type Sink interface {
	MonitorConfig(host, key, value string) error
	Monitor(data map[string]string) error
	EndLog() error
}
