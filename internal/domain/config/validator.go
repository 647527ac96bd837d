package config

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/felixgeelhaar/edgeprov/internal/validation"
)

// Validate checks a parsed configuration and returns every problem found.
func Validate(cfg Configuration) *ErrorList {
	errs := NewErrorList()

	validateAzure(cfg.Azure, errs)
	validateK3s(cfg.K3s, errs)
	validateModules(cfg, errs)
	validateDeployment(cfg.Deployment, errs)
	validateCustomSteps(cfg.CustomSteps, errs)

	return errs
}

func validateAzure(az AzureConfig, errs *ErrorList) {
	checkOptional(errs, "azure.resource_group", az.ResourceGroup, validation.ValidateResourceName)
	checkOptional(errs, "azure.cluster_name", az.ClusterName, validation.ValidateResourceName)
	checkOptional(errs, "azure.keyvault_name", az.KeyVaultName, validation.ValidateResourceName)
	checkOptional(errs, "azure.aio_instance_name", az.AIOInstanceName, validation.ValidateResourceName)
	checkOptional(errs, "azure.location", az.Location, validation.ValidateLocation)
	checkOptional(errs, "azure.subscription_id", az.SubscriptionID, validation.ValidateUUID)
	checkOptional(errs, "azure.custom_locations_oid", az.CustomLocationsOID, validation.ValidateUUID)

	if az.ArcEnabled {
		requireField(errs, "azure.subscription_id", az.SubscriptionID, "arc_enabled")
		requireField(errs, "azure.resource_group", az.ResourceGroup, "arc_enabled")
		requireField(errs, "azure.location", az.Location, "arc_enabled")
		requireField(errs, "azure.cluster_name", az.ClusterName, "arc_enabled")
	}
	if az.CustomLocations {
		requireToggle(errs, "azure.custom_locations", az.ArcEnabled, "azure.arc_enabled")
		requireField(errs, "azure.custom_locations_oid", az.CustomLocationsOID, "custom_locations")
	}
	if az.KeyVaultCSI {
		requireToggle(errs, "azure.keyvault_csi", az.ArcEnabled, "azure.arc_enabled")
		requireField(errs, "azure.keyvault_name", az.KeyVaultName, "keyvault_csi")
	}
	if az.AIOEnabled {
		requireToggle(errs, "azure.aio_enabled", az.ArcEnabled, "azure.arc_enabled")
		requireToggle(errs, "azure.aio_enabled", az.CustomLocations, "azure.custom_locations")
	}
}

func validateK3s(k K3sConfig, errs *ErrorList) {
	if k.Version != "" && !semver.IsValid(k.Version) {
		errs.AddValidation("k3s.version", fmt.Sprintf("%q is not a version such as v1.30.4+k3s1", k.Version))
	}
	checkOptional(errs, "k3s.kubeconfig_path", k.KubeconfigPath, validation.ValidatePath)
	for i, arg := range k.InstallArgs {
		if strings.ContainsAny(arg, "\n\r`$;|&") {
			errs.AddValidation(fmt.Sprintf("k3s.install_args[%d]", i), "contains shell metacharacters")
		}
	}
}

func validateModules(cfg Configuration, errs *ErrorList) {
	names := make([]string, 0, len(cfg.Modules))
	for name := range cfg.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := validation.ValidateKubernetesName(name); err != nil {
			errs.AddValidation("modules."+name, err.Error())
		}
	}
	if len(cfg.EnabledModules()) > 0 {
		checkOptional(errs, "deployment.modules_dir", cfg.Deployment.ModulesDir, validation.ValidatePath)
	}
	checkOptional(errs, "deployment.modules_namespace", cfg.Deployment.ModulesNamespace, validation.ValidateKubernetesName)
}

func validateDeployment(d DeploymentConfig, errs *ErrorList) {
	if d.StepTimeout < 0 {
		errs.AddValidation("deployment.step_timeout", "must not be negative")
	}
	if d.VerifyTimeout < 0 {
		errs.AddValidation("deployment.verify_timeout", "must not be negative")
	}
	if d.PollInterval < 0 {
		errs.AddValidation("deployment.poll_interval", "must not be negative")
	}
	checkOptional(errs, "deployment.state_file", d.StateFile, validation.ValidatePath)
	checkOptional(errs, "deployment.artifact_file", d.ArtifactFile, validation.ValidatePath)
}

func validateCustomSteps(steps []CustomStep, errs *ErrorList) {
	seen := make(map[string]bool, len(steps))
	for i, step := range steps {
		field := fmt.Sprintf("custom_steps[%d]", i)
		if err := validation.ValidateStepName(step.Name); err != nil {
			errs.AddValidation(field+".name", err.Error())
		} else if seen[step.Name] {
			errs.AddValidation(field+".name", fmt.Sprintf("duplicate step name %q", step.Name))
		}
		seen[step.Name] = true

		if strings.TrimSpace(step.Run) == "" {
			errs.AddValidation(field+".run", "is required")
		}
		if step.Timeout < 0 {
			errs.AddValidation(field+".timeout", "must not be negative")
		}
		for j, dep := range step.DependsOn {
			if strings.TrimSpace(dep) == "" {
				errs.AddValidation(fmt.Sprintf("%s.depends_on[%d]", field, j), "must not be empty")
			}
		}
	}
}

func checkOptional(errs *ErrorList, field, value string, check func(string) error) {
	if value == "" {
		return
	}
	if err := check(value); err != nil {
		errs.AddValidation(field, err.Error())
	}
}

func requireField(errs *ErrorList, field, value, toggle string) {
	if value == "" {
		errs.AddValidation(field, fmt.Sprintf("required when %s is true", toggle))
	}
}

func requireToggle(errs *ErrorList, field string, enabled bool, prerequisite string) {
	if !enabled {
		errs.AddValidation(field, fmt.Sprintf("requires %s", prerequisite))
	}
}
