package config

type AppConfig struct {
	Server      ServerConfig
	Log         LogConfig
	Reasoner    ReasonerConfig
	Negotiation NegotiationConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	reasonerCfg, err := LoadReasoner()
	if err != nil {
		return AppConfig{}, err
	}
	negCfg, err := LoadNegotiation()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:      serverCfg,
		Log:         logCfg,
		Reasoner:    reasonerCfg,
		Negotiation: negCfg,
	}, nil
}
