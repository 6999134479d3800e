package stanzapl

import (
	"context"
	"embed"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/compose-spec/compose-go/v2/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
	"github.com/tassa-yoniso-manasi-karoto/dockerutil"
)

const (
	defaultProjectName   = "stanzapl"
	defaultServiceName   = "stanza"
	defaultContainerName = "stanzapl-stanza-1"
	defaultImage         = "python:3.11-slim"
	defaultLanguage      = "pl"
	healthCheckPath      = "/health"
	serviceCheckInterval = 500 * time.Millisecond
	// first run installs torch + stanza and downloads the Polish models
	maxServiceWaitTime = 900 * time.Second

	// printed by the interactive Python REPL, the container's main process.
	// server.py runs as a detached exec so its output never reaches the
	// container log.
	containerInitMessage = "for more information"

	workspaceDir     = "/workspace"
	servicePortToken = "__STANZAPL_SERVICE_PORT__"
)

var (
	//go:embed service/*
	serviceFiles embed.FS

	//go:embed docker_light_requirements.txt
	lightRequirements []byte

	//go:embed docker_full_requirements.txt
	fullRequirements []byte

	// Default settings
	DefaultQueryTimeout   = 30 * time.Second
	DefaultDockerLogLevel = zerolog.TraceLevel

	// UseLightweightMode selects the CPU-only torch build (default: true).
	// Set to false before Init() to install the default CUDA-enabled build.
	UseLightweightMode = true

	// Logger for this package
	Logger = zerolog.Nop()

	// Package-level instance for backward compatibility
	instance       *StanzaManager
	instanceMu     sync.Mutex
	instanceClosed bool
)

// EnableDebugLogging enables debug logging for the package
func EnableDebugLogging() {
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
}

// StanzaManager handles Docker lifecycle and service management for the
// Stanza pipeline
type StanzaManager struct {
	docker                   *dockerutil.DockerManager
	logger                   *dockerutil.ContainerLogConsumer
	client                   *Client
	projectName              string
	containerName            string
	image                    string
	processors               []string
	serviceURL               string
	servicePort              int
	QueryTimeout             time.Duration
	serviceReady             bool
	lightweightMode          bool
	downloadProgressCallback func(current, total int64, status string)
	mu                       sync.RWMutex
}

// ManagerOption defines function signature for options to configure StanzaManager
type ManagerOption func(*StanzaManager)

// WithQueryTimeout sets a custom query timeout
func WithQueryTimeout(timeout time.Duration) ManagerOption {
	return func(pm *StanzaManager) {
		pm.QueryTimeout = timeout
	}
}

// WithProjectName sets a custom project name for multiple instances
func WithProjectName(name string) ManagerOption {
	return func(pm *StanzaManager) {
		pm.projectName = name
		pm.containerName = name + "-" + defaultServiceName + "-1"
	}
}

// WithContainerName overrides the default container name
func WithContainerName(name string) ManagerOption {
	return func(pm *StanzaManager) {
		pm.containerName = name
	}
}

// WithImage overrides the Python base image the service runs in
func WithImage(image string) ManagerOption {
	return func(pm *StanzaManager) {
		pm.image = image
	}
}

// WithProcessors sets the Stanza processors loaded by the service
func WithProcessors(processors ...string) ManagerOption {
	return func(pm *StanzaManager) {
		pm.processors = processors
	}
}

// WithLightweightMode sets whether to install the CPU-only torch build
func WithLightweightMode(lightweight bool) ManagerOption {
	return func(pm *StanzaManager) {
		pm.lightweightMode = lightweight
	}
}

// WithDownloadProgressCallback sets a callback for download progress during image pull
func WithDownloadProgressCallback(cb func(current, total int64, status string)) ManagerOption {
	return func(pm *StanzaManager) {
		pm.downloadProgressCallback = cb
	}
}

// ptr returns a pointer to the given string value
func ptr(s string) *string {
	return &s
}

// buildComposeProject creates the compose project definition for the service
func buildComposeProject(projectName, image, dataDir string, port int, processors []string) *types.Project {
	return &types.Project{
		Name: projectName,
		Services: types.Services{
			defaultServiceName: {
				Name:       defaultServiceName,
				Image:      image,
				StdinOpen:  true,
				Tty:        true,
				WorkingDir: workspaceDir,
				Environment: types.MappingWithEquals{
					"STANZA_RESOURCES_DIR": ptr(workspaceDir + "/stanza_resources"),
					"PYTHONUSERBASE":       ptr(workspaceDir + "/pylib"),
					"STANZAPL_LANGUAGE":    ptr(defaultLanguage),
					"STANZAPL_PROCESSORS":  ptr(strings.Join(processors, ",")),
				},
				Volumes: []types.ServiceVolumeConfig{{
					Type:   types.VolumeTypeBind,
					Source: dataDir,
					Target: workspaceDir,
				}},
				Ports: []types.ServicePortConfig{{
					Target:    uint32(port),
					Published: fmt.Sprintf("%d", port),
					Protocol:  "tcp",
				}},
			},
		},
	}
}

// newLogConfig configures the container log consumer dockerutil waits on
// during Init
func newLogConfig(projectName string) dockerutil.LogConfig {
	return dockerutil.LogConfig{
		Prefix:      projectName,
		ShowService: true,
		ShowType:    true,
		LogLevel:    DefaultDockerLogLevel,
		InitMessage: containerInitMessage,
	}
}

// NewManager creates a new Stanza manager instance
func NewManager(ctx context.Context, opts ...ManagerOption) (*StanzaManager, error) {
	// Enable Docker logging to stdout
	dockerutil.SetLogOutput(dockerutil.LogToStdout)

	manager := &StanzaManager{
		projectName:     defaultProjectName,
		containerName:   defaultContainerName,
		image:           defaultImage,
		processors:      DefaultProcessors,
		QueryTimeout:    DefaultQueryTimeout,
		lightweightMode: UseLightweightMode,
	}

	// Apply options
	for _, opt := range opts {
		opt(manager)
	}

	// Models and Python packages live here between container rebuilds
	dataDir := filepath.Join(xdg.DataHome, manager.projectName)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := manager.writeRequirementsFile(dataDir); err != nil {
		return nil, err
	}

	// Allocate a free port
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return nil, fmt.Errorf("failed to allocate port: %w", err)
	}
	manager.servicePort = listener.Addr().(*net.TCPAddr).Port
	listener.Close() // Release the port for later use

	Logger.Info().Int("port", manager.servicePort).Msg("Allocated port for Stanza service")

	project := buildComposeProject(
		manager.projectName, manager.image, dataDir, manager.servicePort, manager.processors)

	logger := dockerutil.NewContainerLogConsumer(newLogConfig(manager.projectName))

	cfg := dockerutil.Config{
		ProjectName:      manager.projectName,
		Project:          project,
		RequiredServices: []string{defaultServiceName},
		LogConsumer:      logger,
		Timeout: dockerutil.Timeout{
			Create:   30 * time.Minute,
			Recreate: 60 * time.Minute,
			Start:    30 * time.Minute,
		},
		OnPullProgress: manager.downloadProgressCallback,
	}

	dockerManager, err := dockerutil.NewDockerManager(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker manager: %w", err)
	}

	manager.docker = dockerManager
	manager.logger = logger
	manager.serviceURL = fmt.Sprintf("http://localhost:%d", manager.servicePort)
	manager.client = NewClient(manager.serviceURL, manager.QueryTimeout)

	return manager, nil
}

// PullImage pre-pulls the base image with progress tracking
func (pm *StanzaManager) PullImage(ctx context.Context) error {
	opts := dockerutil.DefaultPullOptions()
	if pm.downloadProgressCallback != nil {
		opts.OnProgress = pm.downloadProgressCallback
	}
	return dockerutil.PullImage(ctx, pm.image, opts)
}

// Init initializes the docker service and starts the Python server
func (pm *StanzaManager) Init(ctx context.Context) error {
	if err := pm.docker.Init(); err != nil {
		return fmt.Errorf("failed to initialize docker: %w", err)
	}

	if err := pm.startService(ctx); err != nil {
		return fmt.Errorf("failed to start Python service: %w", err)
	}

	return nil
}

// InitRecreate removes existing containers then builds and starts new ones
func (pm *StanzaManager) InitRecreate(ctx context.Context, noCache bool) error {
	if noCache {
		if err := pm.docker.InitRecreateNoCache(); err != nil {
			return err
		}
	} else {
		if err := pm.docker.InitRecreate(); err != nil {
			return err
		}
	}

	if err := pm.startService(ctx); err != nil {
		return fmt.Errorf("failed to start Python service: %w", err)
	}

	return nil
}

// writeRequirementsFile puts the requirements matching the lightweight mode
// into the bind-mounted data directory
func (pm *StanzaManager) writeRequirementsFile(dataDir string) error {
	var requirements []byte
	if pm.lightweightMode {
		Logger.Info().Msg("Using lightweight requirements (CPU-only torch)")
		requirements = lightRequirements
	} else {
		Logger.Info().Msg("Using full requirements (CUDA-enabled torch)")
		requirements = fullRequirements
	}

	targetPath := filepath.Join(dataDir, "requirements.txt")
	if err := os.WriteFile(targetPath, requirements, 0644); err != nil {
		return fmt.Errorf("failed to write requirements file: %w", err)
	}

	Logger.Debug().Str("path", targetPath).Bool("lightweight", pm.lightweightMode).Msg("Requirements file written")
	return nil
}

// startService installs the Python dependencies if missing, copies the
// service files and starts the Python server
func (pm *StanzaManager) startService(ctx context.Context) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	Logger.Debug().Msg("Starting service...")

	dockerClient, err := pm.docker.GetClient()
	if err != nil {
		return fmt.Errorf("failed to get Docker client: %w", err)
	}

	Logger.Debug().Msg("Copying service files...")
	if err := pm.copyServiceFiles(ctx, dockerClient); err != nil {
		return fmt.Errorf("failed to copy service files: %w", err)
	}

	Logger.Debug().Msg("Checking if service is already running...")
	if pm.isServiceRunning(ctx) {
		pm.serviceReady = true
		Logger.Debug().Msg("Service is already running")
		return nil
	}

	Logger.Info().Msg("Ensuring Python dependencies are installed...")
	installCmd := []string{
		"python -c 'import stanza' 2>/dev/null",
		"||",
		"pip install --user --no-cache-dir --quiet -r " + workspaceDir + "/requirements.txt",
	}
	output, err := pm.execCommand(ctx, dockerClient, installCmd)
	if err != nil {
		return fmt.Errorf("failed to install requirements: %w", err)
	}
	Logger.Debug().Str("output", string(output)).Msg("Requirements check done")

	// Start the service in a new bash session to avoid the interactive Python REPL
	startCmd := []string{
		"/bin/bash", "-c",
		"exec python -u " + workspaceDir + "/service/server.py",
	}

	execConfig := container.ExecOptions{
		Cmd:          startCmd,
		AttachStdout: false,
		AttachStderr: false,
		Detach:       true,
		Tty:          false,
		WorkingDir:   workspaceDir,
	}

	exec, err := dockerClient.ContainerExecCreate(ctx, pm.containerName, execConfig)
	if err != nil {
		return fmt.Errorf("failed to create service exec: %w", err)
	}

	Logger.Debug().Msg("Starting Python service exec...")
	if err := dockerClient.ContainerExecStart(ctx, exec.ID, container.ExecStartOptions{
		Detach: true,
		Tty:    false,
	}); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	// The service downloads the models before it starts listening
	Logger.Debug().Msg("Waiting for service to be ready...")
	if err := pm.waitForService(ctx); err != nil {
		return fmt.Errorf("service failed to start: %w", err)
	}

	pm.serviceReady = true
	return nil
}

// copyServiceFiles copies the embedded service files into the container
func (pm *StanzaManager) copyServiceFiles(ctx context.Context, dockerClient *client.Client) error {
	content, err := serviceFiles.ReadFile("service/server.py")
	if err != nil {
		return fmt.Errorf("failed to read server.py: %w", err)
	}

	portStr := fmt.Sprintf("%d", pm.servicePort)
	modifiedContent := strings.ReplaceAll(string(content), servicePortToken, portStr)

	if strings.Contains(modifiedContent, servicePortToken) {
		return fmt.Errorf("failed to replace port placeholder in server.py")
	}

	mkdirCmd := []string{"mkdir", "-p", workspaceDir + "/service"}
	if _, err := pm.execCommand(ctx, dockerClient, mkdirCmd); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}

	writeCmd := []string{
		fmt.Sprintf("cat > %s/service/server.py << 'EOF'\n%s\nEOF", workspaceDir, modifiedContent),
	}
	if _, err := pm.execCommand(ctx, dockerClient, writeCmd); err != nil {
		return fmt.Errorf("failed to write server.py: %w", err)
	}

	return nil
}

// execCommand executes a command in the container and returns the output
func (pm *StanzaManager) execCommand(ctx context.Context, dockerClient *client.Client, cmd []string) ([]byte, error) {
	bashCmd := append([]string{"/bin/bash", "-c"}, strings.Join(cmd, " "))

	Logger.Trace().Strs("command", bashCmd).Msg("Executing command")

	execConfig := container.ExecOptions{
		Cmd:          bashCmd,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
		WorkingDir:   workspaceDir,
	}

	exec, err := dockerClient.ContainerExecCreate(ctx, pm.containerName, execConfig)
	if err != nil {
		return nil, err
	}

	resp, err := dockerClient.ContainerExecAttach(ctx, exec.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	output, err := io.ReadAll(resp.Reader)
	if err != nil {
		return nil, err
	}

	Logger.Trace().Str("output", string(output)).Msg("Command output")
	return output, nil
}

// isServiceRunning checks if the Python service is responding
func (pm *StanzaManager) isServiceRunning(ctx context.Context) bool {
	health, err := pm.client.Health(ctx)
	if err != nil {
		Logger.Trace().Err(err).Msg("Health check error")
		return false
	}
	Logger.Trace().Interface("response", health).Msg("Health check response")
	return health.Status == "ready"
}

// waitForService waits for the Python service to be ready
func (pm *StanzaManager) waitForService(ctx context.Context) error {
	deadline := time.Now().Add(maxServiceWaitTime)

	attempt := 0
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(serviceCheckInterval):
			attempt++
			Logger.Trace().Int("attempt", attempt).Msg("Health check attempt")
			if pm.isServiceRunning(ctx) {
				Logger.Debug().Msg("Service is ready!")
				return nil
			}
		}
	}

	return fmt.Errorf("service failed to start within %v", maxServiceWaitTime)
}

// GetClient returns the HTTP client for making API calls
func (pm *StanzaManager) GetClient() *Client {
	return pm.client
}

// IsReady returns whether the service is ready to accept requests
func (pm *StanzaManager) IsReady() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.serviceReady
}

// IsLightweightMode returns whether the manager is using lightweight mode
func (pm *StanzaManager) IsLightweightMode() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lightweightMode
}

// Stop stops the docker service
func (pm *StanzaManager) Stop(ctx context.Context) error {
	pm.mu.Lock()
	pm.serviceReady = false
	pm.mu.Unlock()

	return pm.docker.Stop()
}

// Close implements io.Closer
func (pm *StanzaManager) Close() error {
	pm.mu.Lock()
	pm.serviceReady = false
	pm.mu.Unlock()

	pm.logger.Close()
	return pm.docker.Close()
}

// Package-level functions for backward compatibility

// getOrCreateDefaultManager returns or creates the default manager instance
func getOrCreateDefaultManager(ctx context.Context) (*StanzaManager, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil || instanceClosed {
		mgr, err := NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create default manager: %w", err)
		}
		instance = mgr
		instanceClosed = false
	}

	return instance, nil
}

// Init initializes the default docker service
func Init() error {
	ctx := context.Background()
	mgr, err := getOrCreateDefaultManager(ctx)
	if err != nil {
		return err
	}
	return mgr.Init(ctx)
}

// InitRecreate removes existing containers and creates new ones
func InitRecreate(noCache bool) error {
	ctx := context.Background()
	mgr, err := getOrCreateDefaultManager(ctx)
	if err != nil {
		return err
	}
	return mgr.InitRecreate(ctx, noCache)
}

// Close closes the default instance
func Close() error {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		err := instance.Close()
		instanceClosed = true
		return err
	}
	return nil
}

// SetDefaultManager sets a custom manager as the package-level default
// instance, so that package-level functions such as Process() reuse its
// container.
func SetDefaultManager(mgr *StanzaManager) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = mgr
	instanceClosed = false
}

// ClearDefaultManager clears the default manager reference.
// This does NOT close the manager - the caller is responsible for that.
func ClearDefaultManager() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
	instanceClosed = true
}
