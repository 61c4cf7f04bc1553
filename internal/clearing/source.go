package clearing

import "github.com/rishav/exchange-core/internal/wire"

// InstrumentSource is the external collaborator the Server loads its
// catalog from (§1: "the core consumes ... an InstrumentSource
// interface"). What backs it — a database, a config file, a static list
// — is out of this core's scope.
type InstrumentSource interface {
	LoadInstruments() ([]wire.InstrumentUpdate, error)
}

// StaticSource is a minimal in-memory InstrumentSource, enough to drive
// the integration tests and a standalone demo deployment.
type StaticSource struct {
	Instruments []wire.InstrumentUpdate
}

func (s *StaticSource) LoadInstruments() ([]wire.InstrumentUpdate, error) {
	return s.Instruments, nil
}
