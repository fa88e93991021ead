package services

import (
	"github.com/irt-tools/cat-service/internal/cache"
	"github.com/irt-tools/cat-service/internal/config"
	"github.com/irt-tools/cat-service/internal/events"
	"github.com/irt-tools/cat-service/internal/repositories"
	"github.com/irt-tools/cat-service/internal/utils"
)

// ServiceManager bundles all services for dependency injection into the
// HTTP layer.
type ServiceManager interface {
	Bank() BankService
	Study() StudyService
	Session() SessionService
	Export() ExportService
	Simulation() SimulationService
}

type serviceManager struct {
	bank       BankService
	study      StudyService
	session    SessionService
	export     ExportService
	simulation SimulationService
}

func NewServiceManager(
	repo repositories.Repository,
	sessionCache cache.SessionCache,
	publisher events.EventPublisher,
	cfg *config.Config,
	logger utils.Logger,
	validator *utils.Validator,
) ServiceManager {
	bank := NewBankService(repo, logger, validator)
	study := NewStudyService(repo, bank, logger, validator)
	session := NewSessionService(repo, study, sessionCache, publisher, logger, validator)
	export := NewExportService(repo, study, logger, cfg.ResultsDir)
	simulation := NewSimulationService(study, logger, validator)

	return &serviceManager{
		bank:       bank,
		study:      study,
		session:    session,
		export:     export,
		simulation: simulation,
	}
}

func (m *serviceManager) Bank() BankService             { return m.bank }
func (m *serviceManager) Study() StudyService           { return m.study }
func (m *serviceManager) Session() SessionService       { return m.session }
func (m *serviceManager) Export() ExportService         { return m.export }
func (m *serviceManager) Simulation() SimulationService { return m.simulation }
