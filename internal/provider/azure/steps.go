package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
	"github.com/felixgeelhaar/edgeprov/internal/provider/commandutil"
)

const provisioningSucceeded = "Succeeded"

// query runs a read-only az command and returns its trimmed output. A
// non-zero exit, which az uses for "resource not found", is not an error.
func query(ctx context.Context, runner ports.CommandRunner, args ...string) (string, bool, error) {
	result, ok, err := commandutil.Probe(ctx, runner, commandutil.Az(args...))
	if err != nil || !ok {
		return "", false, err
	}
	return result.Output(), true, nil
}

func run(ctx context.Context, runner ports.CommandRunner, args ...string) (ports.CommandResult, error) {
	return commandutil.Run(ctx, runner, commandutil.Az(args...))
}

// CLIStep installs the Azure CLI and the extensions the enabled features use.
type CLIStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	cfg    *Config
	runner ports.CommandRunner
}

// NewCLIStep creates a new CLIStep.
func NewCLIStep(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) *CLIStep {
	return &CLIStep{
		id:     compiler.MustNewStepID("azure:cli"),
		deps:   deps,
		cfg:    cfg,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *CLIStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *CLIStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if the CLI and every needed extension are installed.
func (s *CLIStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	installed, missing, err := s.inspect(ctx.Context())
	if err != nil {
		return compiler.Unknown, err
	}
	if !installed || len(missing) > 0 {
		return compiler.NotSatisfied, nil
	}
	return compiler.Satisfied, nil
}

// Plan returns the diff for this step.
func (s *CLIStep) Plan(ctx compiler.RunContext) (compiler.Diff, error) {
	installed, missing, err := s.inspect(ctx.Context())
	if err != nil {
		return compiler.Diff{}, err
	}
	if !installed {
		return compiler.NewDiff(compiler.DiffTypeAdd, "tool", "azure-cli", "", strings.Join(s.cfg.Extensions(), ",")), nil
	}
	return compiler.NewDiff(compiler.DiffTypeModify, "tool", "azure-cli", "", "+"+strings.Join(missing, ",+")), nil
}

// Apply installs whatever is missing.
func (s *CLIStep) Apply(ctx compiler.RunContext) error {
	installed, missing, err := s.inspect(ctx.Context())
	if err != nil {
		return err
	}
	if !installed {
		if _, err := commandutil.Run(ctx.Context(), s.runner, ports.Shell(CLIInstallScript)); err != nil {
			return fmt.Errorf("install azure cli: %w", err)
		}
		missing = s.cfg.Extensions()
	}
	for _, ext := range missing {
		if _, err := run(ctx.Context(), s.runner, "extension", "add", "--upgrade", "--name", ext, "--yes"); err != nil {
			return fmt.Errorf("add extension %s: %w", ext, err)
		}
	}
	return nil
}

// Verify confirms the CLI reports every extension.
func (s *CLIStep) Verify(ctx compiler.RunContext) error {
	installed, missing, err := s.inspect(ctx.Context())
	if err != nil {
		return err
	}
	if !installed {
		return fmt.Errorf("az is not on PATH after install")
	}
	if len(missing) > 0 {
		return fmt.Errorf("azure cli extensions missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *CLIStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Install Azure CLI",
		fmt.Sprintf("Installs the Azure CLI and the %s extensions. Sign in with az login before running.", strings.Join(s.cfg.Extensions(), ", ")),
		[]string{"https://learn.microsoft.com/cli/azure/install-azure-cli-linux"},
	)
}

type cliVersion struct {
	CLI        string            `json:"azure-cli"`
	Extensions map[string]string `json:"extensions"`
}

// inspect reports whether az is installed and which extensions are missing.
func (s *CLIStep) inspect(ctx context.Context) (bool, []string, error) {
	result, ok, err := commandutil.Probe(ctx, s.runner, commandutil.Az("version", "--output", "json"))
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, s.cfg.Extensions(), nil
	}
	var v cliVersion
	if err := json.Unmarshal([]byte(result.Stdout), &v); err != nil {
		return true, nil, fmt.Errorf("decode az version: %w", err)
	}
	var missing []string
	for _, ext := range s.cfg.Extensions() {
		if _, ok := v.Extensions[ext]; !ok {
			missing = append(missing, ext)
		}
	}
	return true, missing, nil
}

// ArcConnectStep connects the K3s cluster to Azure Arc.
type ArcConnectStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	cfg    *Config
	runner ports.CommandRunner
}

// NewArcConnectStep creates a new ArcConnectStep.
func NewArcConnectStep(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) *ArcConnectStep {
	return &ArcConnectStep{
		id:     compiler.MustNewStepID("azure:arc-connect"),
		deps:   deps,
		cfg:    cfg,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *ArcConnectStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *ArcConnectStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if the connected cluster resource exists.
func (s *ArcConnectStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	_, exists, err := s.show(ctx.Context(), "id")
	if err != nil {
		return compiler.Unknown, err
	}
	if exists {
		return compiler.Satisfied, nil
	}
	return compiler.NotSatisfied, nil
}

// Plan returns the diff for this step.
func (s *ArcConnectStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeAdd, "connectedCluster", s.cfg.ClusterName, "", s.cfg.ResourceGroup+"/"+s.cfg.Location), nil
}

// Apply connects the cluster and publishes its resource ID.
func (s *ArcConnectStep) Apply(ctx compiler.RunContext) error {
	if _, err := run(ctx.Context(), s.runner, "account", "set", "--subscription", s.cfg.SubscriptionID); err != nil {
		return fmt.Errorf("select subscription: %w", err)
	}
	if _, err := run(ctx.Context(), s.runner, "connectedk8s", "connect",
		"--name", s.cfg.ClusterName,
		"--resource-group", s.cfg.ResourceGroup,
		"--location", s.cfg.Location,
		"--kube-config", s.cfg.KubeconfigPath); err != nil {
		return fmt.Errorf("arc connect: %w", err)
	}

	id, exists, err := s.show(ctx.Context(), "id")
	if err != nil {
		return err
	}
	if !exists || id == "" {
		return fmt.Errorf("connected cluster %s not found after connect", s.cfg.ClusterName)
	}
	ctx.Artifacts().Publish(compiler.ArtifactArcResourceID, id)
	return nil
}

// Verify polls until the agents report the cluster Connected.
func (s *ArcConnectStep) Verify(ctx compiler.RunContext) error {
	return compiler.Poll(ctx.Context(), s.cfg.poll(ctx), func(c context.Context) (bool, error) {
		status, _, err := s.show(c, "connectivityStatus")
		return status == "Connected", err
	})
}

// Explain provides a human-readable explanation.
func (s *ArcConnectStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Connect cluster to Azure Arc",
		fmt.Sprintf("Creates the connected cluster %s in resource group %s and waits for its agents to report Connected.",
			s.cfg.ClusterName, s.cfg.ResourceGroup),
		[]string{"https://learn.microsoft.com/azure/azure-arc/kubernetes/quickstart-connect-cluster"},
	)
}

func (s *ArcConnectStep) show(ctx context.Context, field string) (string, bool, error) {
	return query(ctx, s.runner, "connectedk8s", "show",
		"--name", s.cfg.ClusterName,
		"--resource-group", s.cfg.ResourceGroup,
		"--query", field,
		"--output", "tsv")
}

// CustomLocationsStep enables the cluster-connect and custom-locations
// features on the connected cluster.
type CustomLocationsStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	cfg    *Config
	runner ports.CommandRunner
}

// NewCustomLocationsStep creates a new CustomLocationsStep.
func NewCustomLocationsStep(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) *CustomLocationsStep {
	return &CustomLocationsStep{
		id:     compiler.MustNewStepID("azure:custom-locations"),
		deps:   deps,
		cfg:    cfg,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *CustomLocationsStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *CustomLocationsStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check cannot read the feature state back; enable-features is safe to
// repeat, so the step always applies until it has converged.
func (s *CustomLocationsStep) Check(_ compiler.RunContext) (compiler.Precondition, error) {
	return compiler.Unknown, nil
}

// Plan returns the diff for this step.
func (s *CustomLocationsStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeModify, "connectedCluster", s.cfg.ClusterName, "", "custom-locations"), nil
}

// Apply enables the features.
func (s *CustomLocationsStep) Apply(ctx compiler.RunContext) error {
	if _, err := run(ctx.Context(), s.runner, "connectedk8s", "enable-features",
		"--name", s.cfg.ClusterName,
		"--resource-group", s.cfg.ResourceGroup,
		"--custom-locations-oid", s.cfg.CustomLocationsOID,
		"--features", "cluster-connect", "custom-locations",
		"--kube-config", s.cfg.KubeconfigPath); err != nil {
		return fmt.Errorf("enable custom locations: %w", err)
	}
	return nil
}

// Verify polls until the cluster-connect agent that custom locations route
// through is available on the cluster.
func (s *CustomLocationsStep) Verify(ctx compiler.RunContext) error {
	cmd := commandutil.Kubectl(s.cfg.KubeconfigPath, "get", "deployment", ClusterConnectAgent,
		"--namespace", ArcNamespace,
		"--output", "jsonpath={.status.availableReplicas}")
	return compiler.Poll(ctx.Context(), s.cfg.poll(ctx), func(c context.Context) (bool, error) {
		result, ok, err := commandutil.Probe(c, s.runner, cmd)
		if err != nil || !ok {
			return false, err
		}
		replicas := result.Output()
		return replicas != "" && replicas != "0", nil
	})
}

// Explain provides a human-readable explanation.
func (s *CustomLocationsStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Enable custom locations",
		"Enables the cluster-connect and custom-locations features that Azure IoT Operations deploys through.",
		[]string{"https://learn.microsoft.com/azure/azure-arc/kubernetes/custom-locations"},
	)
}

// KeyVaultCSIStep ensures the Key Vault exists and installs the secret store
// CSI driver extension on the connected cluster.
type KeyVaultCSIStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	cfg    *Config
	runner ports.CommandRunner
}

// NewKeyVaultCSIStep creates a new KeyVaultCSIStep.
func NewKeyVaultCSIStep(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) *KeyVaultCSIStep {
	return &KeyVaultCSIStep{
		id:     compiler.MustNewStepID("azure:keyvault-csi"),
		deps:   deps,
		cfg:    cfg,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *KeyVaultCSIStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *KeyVaultCSIStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if the extension is provisioned.
func (s *KeyVaultCSIStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	state, _, err := s.extensionState(ctx.Context())
	if err != nil {
		return compiler.Unknown, err
	}
	if state == provisioningSucceeded {
		return compiler.Satisfied, nil
	}
	return compiler.NotSatisfied, nil
}

// Plan returns the diff for this step.
func (s *KeyVaultCSIStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeAdd, "extension", KeyVaultExtensionName, "", s.cfg.KeyVaultName), nil
}

// Apply creates the vault when missing and installs the extension.
func (s *KeyVaultCSIStep) Apply(ctx compiler.RunContext) error {
	_, exists, err := query(ctx.Context(), s.runner, "keyvault", "show",
		"--name", s.cfg.KeyVaultName,
		"--resource-group", s.cfg.ResourceGroup,
		"--query", "id",
		"--output", "tsv")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := run(ctx.Context(), s.runner, "keyvault", "create",
			"--name", s.cfg.KeyVaultName,
			"--resource-group", s.cfg.ResourceGroup,
			"--location", s.cfg.Location); err != nil {
			return fmt.Errorf("create key vault: %w", err)
		}
	}

	if _, err := run(ctx.Context(), s.runner, "k8s-extension", "create",
		"--name", KeyVaultExtensionName,
		"--extension-type", "Microsoft.AzureKeyVaultSecretsProvider",
		"--cluster-type", "connectedClusters",
		"--cluster-name", s.cfg.ClusterName,
		"--resource-group", s.cfg.ResourceGroup); err != nil {
		return fmt.Errorf("install %s extension: %w", KeyVaultExtensionName, err)
	}
	return nil
}

// Verify polls until the extension reports Succeeded.
func (s *KeyVaultCSIStep) Verify(ctx compiler.RunContext) error {
	return compiler.Poll(ctx.Context(), s.cfg.poll(ctx), func(c context.Context) (bool, error) {
		state, _, err := s.extensionState(c)
		return state == provisioningSucceeded, err
	})
}

// Explain provides a human-readable explanation.
func (s *KeyVaultCSIStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Configure Key Vault secret store",
		fmt.Sprintf("Ensures Key Vault %s exists and installs the %s extension so workloads can mount its secrets.",
			s.cfg.KeyVaultName, KeyVaultExtensionName),
		[]string{"https://learn.microsoft.com/azure/azure-arc/kubernetes/tutorial-akv-secrets-provider"},
	)
}

func (s *KeyVaultCSIStep) extensionState(ctx context.Context) (string, bool, error) {
	return query(ctx, s.runner, "k8s-extension", "show",
		"--name", KeyVaultExtensionName,
		"--cluster-type", "connectedClusters",
		"--cluster-name", s.cfg.ClusterName,
		"--resource-group", s.cfg.ResourceGroup,
		"--query", "provisioningState",
		"--output", "tsv")
}

// AIOStep deploys the Azure IoT Operations instance.
type AIOStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	cfg    *Config
	runner ports.CommandRunner
}

// NewAIOStep creates a new AIOStep.
func NewAIOStep(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) *AIOStep {
	return &AIOStep{
		id:     compiler.MustNewStepID("azure:aio"),
		deps:   deps,
		cfg:    cfg,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *AIOStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *AIOStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check determines if the instance is provisioned.
func (s *AIOStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	state, _, err := s.show(ctx.Context(), "provisioningState")
	if err != nil {
		return compiler.Unknown, err
	}
	if state == provisioningSucceeded {
		return compiler.Satisfied, nil
	}
	return compiler.NotSatisfied, nil
}

// Plan returns the diff for this step.
func (s *AIOStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeAdd, "iotOperations", s.cfg.InstanceName, "", s.cfg.ClusterName), nil
}

// Apply prepares the cluster and creates the instance.
func (s *AIOStep) Apply(ctx compiler.RunContext) error {
	if _, err := run(ctx.Context(), s.runner, "iot", "ops", "init",
		"--cluster", s.cfg.ClusterName,
		"--resource-group", s.cfg.ResourceGroup); err != nil {
		return fmt.Errorf("aio init: %w", err)
	}
	if _, err := run(ctx.Context(), s.runner, "iot", "ops", "create",
		"--name", s.cfg.InstanceName,
		"--cluster", s.cfg.ClusterName,
		"--resource-group", s.cfg.ResourceGroup); err != nil {
		return fmt.Errorf("aio create: %w", err)
	}

	ctx.Artifacts().Publish(compiler.ArtifactAIOInstance, s.cfg.InstanceName)
	location, _, err := s.show(ctx.Context(), "extendedLocation.name")
	if err != nil {
		return err
	}
	if location != "" {
		ctx.Artifacts().Publish(compiler.ArtifactCustomLocation, location)
	}
	return nil
}

// Verify polls until the instance reports Succeeded.
func (s *AIOStep) Verify(ctx compiler.RunContext) error {
	return compiler.Poll(ctx.Context(), s.cfg.poll(ctx), func(c context.Context) (bool, error) {
		state, _, err := s.show(c, "provisioningState")
		return state == provisioningSucceeded, err
	})
}

// Explain provides a human-readable explanation.
func (s *AIOStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Deploy Azure IoT Operations",
		fmt.Sprintf("Runs az iot ops init and create for instance %s on cluster %s.", s.cfg.InstanceName, s.cfg.ClusterName),
		[]string{"https://learn.microsoft.com/azure/iot-operations/deploy-iot-ops/howto-deploy-iot-operations"},
	)
}

func (s *AIOStep) show(ctx context.Context, field string) (string, bool, error) {
	return query(ctx, s.runner, "iot", "ops", "show",
		"--name", s.cfg.InstanceName,
		"--resource-group", s.cfg.ResourceGroup,
		"--query", field,
		"--output", "tsv")
}

// Ensure steps implement compiler.Step.
var (
	_ compiler.Step = (*CLIStep)(nil)
	_ compiler.Step = (*ArcConnectStep)(nil)
	_ compiler.Step = (*CustomLocationsStep)(nil)
	_ compiler.Step = (*KeyVaultCSIStep)(nil)
	_ compiler.Step = (*AIOStep)(nil)
)
