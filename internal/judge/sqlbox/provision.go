package sqlbox

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/logger"
)

// Instance is one live per-submission database. Teardown must always run,
// judging outcome or not.
type Instance interface {
	DB() *sql.DB
	Teardown(ctx context.Context) error
}

// Provisioner creates throwaway database instances.
type Provisioner interface {
	Provision(ctx context.Context) (Instance, error)
}

// ProvisionerConfig holds ephemeral MySQL container settings.
type ProvisionerConfig struct {
	Binary         string        `yaml:"binary"`
	Image          string        `yaml:"image"`
	MemoryMB       int64         `yaml:"memoryMB"`
	CPUs           float64       `yaml:"cpus"`
	MaxConnections int           `yaml:"maxConnections"`
	ReadyTimeout   time.Duration `yaml:"readyTimeout"`
	PollInterval   time.Duration `yaml:"pollInterval"`
}

// MySQLProvisioner launches one MySQL container per submission with a random
// root credential and a uuid-derived database name, then tears the whole
// container down after judging.
type MySQLProvisioner struct {
	cfg ProvisionerConfig
}

func NewMySQLProvisioner(cfg ProvisionerConfig) *MySQLProvisioner {
	if cfg.Binary == "" {
		cfg.Binary = "docker"
	}
	if cfg.Image == "" {
		cfg.Image = "mysql:8.4"
	}
	if cfg.MemoryMB <= 0 {
		cfg.MemoryMB = 512
	}
	if cfg.CPUs <= 0 {
		cfg.CPUs = 1.0
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 8
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &MySQLProvisioner{cfg: cfg}
}

type mysqlInstance struct {
	db          *sql.DB
	binary      string
	containerID string
}

func (m *mysqlInstance) DB() *sql.DB { return m.db }

func (m *mysqlInstance) Teardown(ctx context.Context) error {
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			logger.Warn(ctx, "close sql instance failed", zap.Error(err))
		}
	}
	out, err := exec.CommandContext(ctx, m.binary, "rm", "-f", m.containerID).CombinedOutput()
	if err != nil {
		return appErr.Wrapf(err, appErr.SandboxProvision, "remove container %s: %s", m.containerID, strings.TrimSpace(string(out)))
	}
	return nil
}

// Provision starts a container, polls until the server accepts connections,
// and returns a handle bound to a fresh database inside it.
func (p *MySQLProvisioner) Provision(ctx context.Context) (Instance, error) {
	password, err := randomSecret()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxProvision, "generate credential")
	}
	dbName := "judge_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	out, err := exec.CommandContext(ctx, p.cfg.Binary, p.runArgs(password, dbName)...).Output()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxProvision, "start database container")
	}
	containerID := strings.TrimSpace(string(out))

	inst := &mysqlInstance{binary: p.cfg.Binary, containerID: containerID}
	db, err := p.connect(ctx, containerID, password, dbName)
	if err != nil {
		if terr := inst.Teardown(context.Background()); terr != nil {
			logger.Warn(ctx, "teardown after failed provision", zap.Error(terr))
		}
		return nil, err
	}
	inst.db = db
	return inst, nil
}

// runArgs builds the container start argv. The server port is published on
// the loopback interface only; nothing off-host may reach the instance.
func (p *MySQLProvisioner) runArgs(password, dbName string) []string {
	return []string{
		"run", "-d", "--rm",
		"--memory", fmt.Sprintf("%dm", p.cfg.MemoryMB),
		"--cpus", fmt.Sprintf("%g", p.cfg.CPUs),
		"-e", "MYSQL_ROOT_PASSWORD=" + password,
		"-e", "MYSQL_DATABASE=" + dbName,
		"-p", "127.0.0.1::3306",
		p.cfg.Image,
		"--max-connections=" + strconv.Itoa(p.cfg.MaxConnections),
	}
}

func (p *MySQLProvisioner) connect(ctx context.Context, containerID, password, dbName string) (*sql.DB, error) {
	hostPort, err := p.mappedPort(ctx, containerID)
	if err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true", password, hostPort, dbName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxProvision, "open database handle")
	}
	db.SetMaxOpenConns(2)

	deadline := time.Now().Add(p.cfg.ReadyTimeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		pingErr := db.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			_ = db.Close()
			return nil, appErr.Wrapf(pingErr, appErr.SandboxProvision, "database did not become ready")
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, appErr.Wrapf(ctx.Err(), appErr.SandboxProvision, "wait for database")
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

func (p *MySQLProvisioner) mappedPort(ctx context.Context, containerID string) (string, error) {
	out, err := exec.CommandContext(ctx, p.cfg.Binary, "port", containerID, "3306/tcp").Output()
	if err != nil {
		return "", appErr.Wrapf(err, appErr.SandboxProvision, "resolve mapped port")
	}
	// Output form is "0.0.0.0:49153", possibly one line per address family.
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0])
	idx := strings.LastIndex(line, ":")
	if idx < 0 || idx == len(line)-1 {
		return "", appErr.Newf(appErr.SandboxProvision, "unexpected port mapping %q", line)
	}
	return line[idx+1:], nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
