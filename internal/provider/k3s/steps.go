package k3s

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
	"github.com/felixgeelhaar/edgeprov/internal/provider/commandutil"
	"github.com/felixgeelhaar/edgeprov/internal/provider/versionutil"
)

// InstallStep installs or upgrades the K3s server through the upstream
// install script.
type InstallStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	cfg    *Config
	runner ports.CommandRunner
}

// NewInstallStep creates a new InstallStep.
func NewInstallStep(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) *InstallStep {
	return &InstallStep{
		id:     compiler.MustNewStepID("k3s:install"),
		deps:   deps,
		cfg:    cfg,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *InstallStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *InstallStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if the requested K3s version is installed and running.
// Without a pinned version any installed release is accepted.
func (s *InstallStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	installed, err := s.installedVersion(ctx.Context())
	if err != nil {
		return compiler.Unknown, err
	}
	if installed == "" {
		return compiler.NotSatisfied, nil
	}
	if s.cfg.Version != "" && !versionutil.Same(installed, s.cfg.Version) {
		return compiler.NotSatisfied, nil
	}

	active, err := s.active(ctx.Context())
	if err != nil {
		return compiler.Unknown, err
	}
	if !active {
		return compiler.NotSatisfied, nil
	}
	return compiler.Satisfied, nil
}

// Plan returns the diff for this step.
func (s *InstallStep) Plan(ctx compiler.RunContext) (compiler.Diff, error) {
	want := s.cfg.Version
	if want == "" {
		want = "stable"
	}
	installed, err := s.installedVersion(ctx.Context())
	if err != nil {
		return compiler.Diff{}, err
	}
	if installed == "" {
		return compiler.NewDiff(compiler.DiffTypeAdd, "k3s", ServiceName, "", want), nil
	}
	return compiler.NewDiff(compiler.DiffTypeModify, "k3s", ServiceName, installed, want), nil
}

// Apply runs the K3s install script.
func (s *InstallStep) Apply(ctx compiler.RunContext) error {
	if _, err := commandutil.Run(ctx.Context(), s.runner, s.installCommand()); err != nil {
		return fmt.Errorf("k3s install script: %w", err)
	}
	return nil
}

// Verify waits for the k3s service to report active.
func (s *InstallStep) Verify(ctx compiler.RunContext) error {
	return compiler.Poll(ctx.Context(), compiler.PollOptions{
		Interval: s.cfg.PollInterval,
		Timeout:  s.cfg.VerifyTimeout,
		Clock:    ctx.Clock(),
	}, s.active)
}

// Explain provides a human-readable explanation.
func (s *InstallStep) Explain() compiler.Explanation {
	version := s.cfg.Version
	if version == "" {
		version = "the stable channel release"
	}
	return compiler.NewExplanation(
		"Install K3s",
		fmt.Sprintf("Installs %s of K3s with the upstream script and waits for the %s service to become active.", version, ServiceName),
		[]string{"https://docs.k3s.io/installation"},
	)
}

// ConfirmPrompt is asked before a forced reinstall.
func (s *InstallStep) ConfirmPrompt() string {
	return "Re-run the K3s installer on this node? The k3s service restarts and running workloads are interrupted."
}

func (s *InstallStep) installCommand() ports.Command {
	script := "curl -sfL " + InstallScriptURL + " | sh -s -"
	if len(s.cfg.InstallArgs) > 0 {
		script += " " + strings.Join(s.cfg.InstallArgs, " ")
	}
	cmd := ports.Shell(script)
	if s.cfg.Version != "" {
		cmd = cmd.WithEnv("INSTALL_K3S_VERSION=" + s.cfg.Version)
	}
	return cmd
}

func (s *InstallStep) installedVersion(ctx context.Context) (string, error) {
	result, ok, err := commandutil.Probe(ctx, s.runner, ports.Cmd("k3s", "--version"))
	if err != nil || !ok {
		return "", err
	}
	return versionutil.Extract(result.Stdout), nil
}

func (s *InstallStep) active(ctx context.Context) (bool, error) {
	result, ok, err := commandutil.Probe(ctx, s.runner, ports.Cmd("systemctl", "is-active", ServiceName))
	if err != nil {
		return false, err
	}
	return ok && result.Output() == "active", nil
}

// KubeconfigStep copies the K3s admin kubeconfig to the configured path and
// waits for the node to turn Ready.
type KubeconfigStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	cfg    *Config
	fs     ports.FileSystem
	runner ports.CommandRunner
}

// NewKubeconfigStep creates a new KubeconfigStep.
func NewKubeconfigStep(cfg *Config, fs ports.FileSystem, runner ports.CommandRunner, deps ...compiler.StepID) *KubeconfigStep {
	return &KubeconfigStep{
		id:     compiler.MustNewStepID("k3s:kubeconfig"),
		deps:   deps,
		cfg:    cfg,
		fs:     fs,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *KubeconfigStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *KubeconfigStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if the target kubeconfig matches the K3s one.
func (s *KubeconfigStep) Check(_ compiler.RunContext) (compiler.Precondition, error) {
	if !s.fs.Exists(s.cfg.KubeconfigPath) || !s.fs.Exists(SourceKubeconfig) {
		return compiler.NotSatisfied, nil
	}
	want, err := s.fs.FileHash(SourceKubeconfig)
	if err != nil {
		return compiler.Unknown, err
	}
	have, err := s.fs.FileHash(s.cfg.KubeconfigPath)
	if err != nil {
		return compiler.Unknown, err
	}
	if have != want {
		return compiler.NotSatisfied, nil
	}
	return compiler.Satisfied, nil
}

// Plan returns the diff for this step.
func (s *KubeconfigStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	if s.fs.Exists(s.cfg.KubeconfigPath) {
		return compiler.NewDiff(compiler.DiffTypeModify, "file", s.cfg.KubeconfigPath, "", SourceKubeconfig), nil
	}
	return compiler.NewDiff(compiler.DiffTypeAdd, "file", s.cfg.KubeconfigPath, "", SourceKubeconfig), nil
}

// Apply copies the kubeconfig with owner-only permissions.
func (s *KubeconfigStep) Apply(_ compiler.RunContext) error {
	data, err := s.fs.ReadFile(SourceKubeconfig)
	if err != nil {
		return fmt.Errorf("read k3s kubeconfig: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.cfg.KubeconfigPath), 0o700); err != nil {
		return fmt.Errorf("create kubeconfig directory: %w", err)
	}
	if err := s.fs.WriteFile(s.cfg.KubeconfigPath, data, 0o600); err != nil {
		return fmt.Errorf("write kubeconfig: %w", err)
	}
	return nil
}

// Verify polls until the API server reports a Ready node.
func (s *KubeconfigStep) Verify(ctx compiler.RunContext) error {
	return compiler.Poll(ctx.Context(), compiler.PollOptions{
		Interval: s.cfg.PollInterval,
		Timeout:  s.cfg.VerifyTimeout,
		Clock:    ctx.Clock(),
	}, s.nodeReady)
}

// Explain provides a human-readable explanation.
func (s *KubeconfigStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Configure kubeconfig",
		fmt.Sprintf("Copies %s to %s so kubectl, helm and the Azure CLI can reach the cluster, then waits for the node to be Ready.",
			SourceKubeconfig, s.cfg.KubeconfigPath),
		nil,
	)
}

func (s *KubeconfigStep) nodeReady(ctx context.Context) (bool, error) {
	result, err := commandutil.Run(ctx, s.runner, commandutil.Kubectl(s.cfg.KubeconfigPath, "get", "nodes", "--no-headers"))
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(result.Output(), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, cond := range strings.Split(fields[1], ",") {
			if cond == "Ready" {
				return true, nil
			}
		}
	}
	return false, nil
}

// clusterInfoKeys are published by ClusterInfoStep for the Azure steps
// and written to the artifact file.
var clusterInfoKeys = []string{
	compiler.ArtifactClusterName,
	compiler.ArtifactNodeName,
	compiler.ArtifactNodeIP,
	compiler.ArtifactClusterEndpoint,
	compiler.ArtifactK3sVersion,
	compiler.ArtifactKubeconfigPath,
}

// ClusterInfoStep collects node and cluster facts into artifacts.
type ClusterInfoStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	cfg    *Config
	runner ports.CommandRunner
}

// NewClusterInfoStep creates a new ClusterInfoStep.
func NewClusterInfoStep(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) *ClusterInfoStep {
	return &ClusterInfoStep{
		id:     compiler.MustNewStepID("k3s:cluster-info"),
		deps:   deps,
		cfg:    cfg,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *ClusterInfoStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *ClusterInfoStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if every cluster artifact is already known for this
// kubeconfig.
func (s *ClusterInfoStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	artifacts := ctx.Artifacts()
	if !artifacts.Has(clusterInfoKeys...) {
		return compiler.NotSatisfied, nil
	}
	if path, _ := artifacts.Get(compiler.ArtifactKubeconfigPath); path != s.cfg.KubeconfigPath {
		return compiler.NotSatisfied, nil
	}
	if s.cfg.ClusterName != "" {
		if name, _ := artifacts.Get(compiler.ArtifactClusterName); name != s.cfg.ClusterName {
			return compiler.NotSatisfied, nil
		}
	}
	return compiler.Satisfied, nil
}

// Plan returns the diff for this step.
func (s *ClusterInfoStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeAdd, "artifacts", "cluster-info", "", strings.Join(clusterInfoKeys, ",")), nil
}

// Apply queries the cluster and publishes the artifacts.
func (s *ClusterInfoStep) Apply(ctx compiler.RunContext) error {
	node, err := s.firstNode(ctx.Context())
	if err != nil {
		return err
	}
	endpoint, err := commandutil.Run(ctx.Context(), s.runner, commandutil.Kubectl(s.cfg.KubeconfigPath,
		"config", "view", "--minify", "-o", "jsonpath={.clusters[0].cluster.server}"))
	if err != nil {
		return fmt.Errorf("read cluster endpoint: %w", err)
	}

	clusterName := s.cfg.ClusterName
	if clusterName == "" {
		clusterName = node.name
	}

	artifacts := ctx.Artifacts()
	artifacts.Publish(compiler.ArtifactClusterName, clusterName)
	artifacts.Publish(compiler.ArtifactNodeName, node.name)
	artifacts.Publish(compiler.ArtifactNodeIP, node.internalIP)
	artifacts.Publish(compiler.ArtifactClusterEndpoint, endpoint.Output())
	artifacts.Publish(compiler.ArtifactK3sVersion, node.kubeletVersion)
	artifacts.Publish(compiler.ArtifactKubeconfigPath, s.cfg.KubeconfigPath)
	return nil
}

// Verify checks that every artifact has a value.
func (s *ClusterInfoStep) Verify(ctx compiler.RunContext) error {
	var missing []string
	for _, key := range clusterInfoKeys {
		if !ctx.Artifacts().Has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("cluster info incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *ClusterInfoStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Collect cluster information",
		fmt.Sprintf("Reads the node and API endpoint from the cluster and records %s.", strings.Join(clusterInfoKeys, ", ")),
		nil,
	)
}

type nodeInfo struct {
	name           string
	internalIP     string
	kubeletVersion string
}

type nodeList struct {
	Items []struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Status struct {
			Addresses []struct {
				Type    string `json:"type"`
				Address string `json:"address"`
			} `json:"addresses"`
			NodeInfo struct {
				KubeletVersion string `json:"kubeletVersion"`
			} `json:"nodeInfo"`
		} `json:"status"`
	} `json:"items"`
}

func (s *ClusterInfoStep) firstNode(ctx context.Context) (nodeInfo, error) {
	result, err := commandutil.Run(ctx, s.runner, commandutil.Kubectl(s.cfg.KubeconfigPath, "get", "nodes", "-o", "json"))
	if err != nil {
		return nodeInfo{}, fmt.Errorf("list nodes: %w", err)
	}
	var list nodeList
	if err := json.Unmarshal([]byte(result.Stdout), &list); err != nil {
		return nodeInfo{}, fmt.Errorf("decode node list: %w", err)
	}
	if len(list.Items) == 0 {
		return nodeInfo{}, fmt.Errorf("cluster reports no nodes")
	}

	item := list.Items[0]
	info := nodeInfo{name: item.Metadata.Name, kubeletVersion: item.Status.NodeInfo.KubeletVersion}
	for _, addr := range item.Status.Addresses {
		if addr.Type == "InternalIP" {
			info.internalIP = addr.Address
			break
		}
	}
	return info, nil
}

// Ensure steps implement compiler.Step.
var (
	_ compiler.ConfirmableStep = (*InstallStep)(nil)
	_ compiler.Step            = (*KubeconfigStep)(nil)
	_ compiler.Step            = (*ClusterInfoStep)(nil)
)
