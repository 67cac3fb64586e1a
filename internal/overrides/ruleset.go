package overrides

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/temirov/depbot/internal/ecosystems"
)

const (
	builtinSourceNameConstant            = "built-in defaults"
	builtinRulesInvalidTemplateConstant  = "embedded default rules are invalid: %v"
	yamlExtensionConstant                = ".yaml"
	ymlExtensionConstant                 = ".yml"
	organizationsSectionConstant         = "organizations"
	repositoriesSectionConstant          = "repositories"
	ecosystemsSectionConstant            = "ecosystems"
	registriesSectionConstant            = "registries"
	scopeLocationSeparatorConstant       = "."
	readRuleSourceErrorTemplateConstant  = "read: %w"
	decoderCreationErrorTemplateConstant = "decoder: %w"
)

// Format identifies the syntax of a rule source.
type Format string

// Supported rule source formats.
const (
	FormatTOML Format = Format("toml")
	FormatYAML Format = Format("yaml")
)

// FormatFromPath selects YAML for .yml/.yaml files and TOML otherwise.
func FormatFromPath(filePath string) Format {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case yamlExtensionConstant, ymlExtensionConstant:
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Scope identifies the level a rule applies at.
type Scope int

// Rule scopes from least to most specific.
const (
	ScopeGlobal Scope = iota
	ScopeOrganization
	ScopeRepository
	ScopeRepositoryEcosystem
)

var scopeNames = map[Scope]string{
	ScopeGlobal:              "global",
	ScopeOrganization:        "organization",
	ScopeRepository:          "repository",
	ScopeRepositoryEcosystem: "repository-ecosystem",
}

// String names the scope.
func (scope Scope) String() string {
	return scopeNames[scope]
}

// ScopedRule pairs a rule with the scope it was declared at.
type ScopedRule struct {
	Scope        Scope
	Organization string
	Repository   string
	Ecosystem    ecosystems.Name
	Rule         Rule
}

type repositoryEcosystemKey struct {
	repository string
	ecosystem  ecosystems.Name
}

// RuleSet is the immutable, validated collection of override rules.
type RuleSet struct {
	source               string
	global               Rule
	organizations        map[string]Rule
	repositories         map[string]Rule
	repositoryEcosystems map[repositoryEcosystemKey]Rule
	registries           map[string]Registry
}

type repositoryDocument struct {
	Rule       `mapstructure:",squash"`
	Ecosystems map[string]Rule `mapstructure:"ecosystems"`
}

type ruleSetDocument struct {
	Rule          `mapstructure:",squash"`
	Organizations map[string]Rule               `mapstructure:"organizations"`
	Repositories  map[string]repositoryDocument `mapstructure:"repositories"`
	Registries    map[string]Registry           `mapstructure:"registries"`
}

//go:embed default_rules.toml
var builtinRules []byte

// BuiltinRules returns a copy of the embedded default rule document.
func BuiltinRules() []byte {
	return bytes.Clone(builtinRules)
}

// BuiltinGlobalRule returns the defaults applied beneath every rule source. Each call decodes a
// fresh copy, so callers may modify the result.
func BuiltinGlobalRule() Rule {
	document, decodeError := decodeRuleSetDocument(builtinRules, FormatTOML)
	if decodeError != nil {
		panic(fmt.Sprintf(builtinRulesInvalidTemplateConstant, decodeError))
	}
	return document.Rule
}

// DefaultRuleSet returns a rule set holding only the built-in defaults.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		source:               builtinSourceNameConstant,
		global:               BuiltinGlobalRule(),
		organizations:        map[string]Rule{},
		repositories:         map[string]Rule{},
		repositoryEcosystems: map[repositoryEcosystemKey]Rule{},
		registries:           map[string]Registry{},
	}
}

// LoadRuleSet reads and parses the rule file at filePath. An empty path yields DefaultRuleSet.
func LoadRuleSet(filePath string) (RuleSet, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return DefaultRuleSet(), nil
	}
	content, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return RuleSet{}, OverrideParseError{Source: trimmedPath, Cause: fmt.Errorf(readRuleSourceErrorTemplateConstant, readError)}
	}
	return ParseRuleSet(trimmedPath, content, FormatFromPath(trimmedPath))
}

// ParseRuleSet decodes, validates, and normalizes a rule document.
func ParseRuleSet(source string, content []byte, format Format) (RuleSet, error) {
	document, decodeError := decodeRuleSetDocument(content, format)
	if decodeError != nil {
		return RuleSet{}, OverrideParseError{Source: source, Cause: decodeError}
	}
	return buildRuleSet(source, document)
}

func decodeRuleSetDocument(content []byte, format Format) (ruleSetDocument, error) {
	rawDocument := map[string]any{}
	var syntaxError error
	switch format {
	case FormatYAML:
		if len(bytes.TrimSpace(content)) > 0 {
			syntaxError = yaml.Unmarshal(content, &rawDocument)
		}
	default:
		_, syntaxError = toml.Decode(string(content), &rawDocument)
	}
	if syntaxError != nil {
		return ruleSetDocument{}, syntaxError
	}

	var document ruleSetDocument
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  dependencyRuleFromStringHook,
		ErrorUnused: true,
		TagName:     mapstructureTagNameConstant,
		Result:      &document,
	})
	if decoderError != nil {
		return ruleSetDocument{}, fmt.Errorf(decoderCreationErrorTemplateConstant, decoderError)
	}
	if decodeError := decoder.Decode(rawDocument); decodeError != nil {
		return ruleSetDocument{}, decodeError
	}
	return document, nil
}

func buildRuleSet(source string, document ruleSetDocument) (RuleSet, error) {
	ruleSet := DefaultRuleSet()
	ruleSet.source = source

	if validationError := validateRule(document.Rule, ScopeGlobal, "", ""); validationError != nil {
		return RuleSet{}, withSource(validationError, source)
	}
	ruleSet.global = ruleSet.global.Overlay(document.Rule)

	for _, organizationKey := range sortedKeys(document.Organizations) {
		location := organizationsSectionConstant + scopeLocationSeparatorConstant + organizationKey
		organizationRule := document.Organizations[organizationKey]
		if validationError := validateRule(organizationRule, ScopeOrganization, "", location); validationError != nil {
			return RuleSet{}, withSource(validationError, source)
		}
		if combineError := combineInto(ruleSet.organizations, strings.ToLower(strings.TrimSpace(organizationKey)), organizationRule, location); combineError != nil {
			return RuleSet{}, combineError
		}
	}

	for _, repositoryKey := range sortedKeys(document.Repositories) {
		location := repositoriesSectionConstant + scopeLocationSeparatorConstant + repositoryKey
		normalizedRepository := strings.ToLower(strings.TrimSpace(repositoryKey))
		if len(normalizedRepository) == 0 || strings.Contains(normalizedRepository, "/") {
			return RuleSet{}, OverrideParseError{Source: source, Location: location, Cause: errInvalidRepositoryKey}
		}

		repositorySection := document.Repositories[repositoryKey]
		if validationError := validateRule(repositorySection.Rule, ScopeRepository, "", location); validationError != nil {
			return RuleSet{}, withSource(validationError, source)
		}
		if combineError := combineInto(ruleSet.repositories, normalizedRepository, repositorySection.Rule, location); combineError != nil {
			return RuleSet{}, combineError
		}

		for _, ecosystemKey := range sortedKeys(repositorySection.Ecosystems) {
			ecosystemLocation := location + scopeLocationSeparatorConstant + ecosystemsSectionConstant + scopeLocationSeparatorConstant + ecosystemKey
			ecosystemRule := repositorySection.Ecosystems[ecosystemKey]
			ecosystemName := ecosystems.Canonicalize(ecosystemKey)
			if validationError := validateRule(ecosystemRule, ScopeRepositoryEcosystem, ecosystemName, ecosystemLocation); validationError != nil {
				return RuleSet{}, withSource(validationError, source)
			}
			ecosystemRule.Directories = normalizeDirectories(ecosystemRule.Directories)
			scopeKey := repositoryEcosystemKey{repository: normalizedRepository, ecosystem: ecosystemName}
			if combineError := combineInto(ruleSet.repositoryEcosystems, scopeKey, ecosystemRule, ecosystemLocation); combineError != nil {
				return RuleSet{}, combineError
			}
		}
	}

	for _, registryName := range sortedKeys(document.Registries) {
		location := registriesSectionConstant + scopeLocationSeparatorConstant + registryName
		if validationError := validateRegistry(document.Registries[registryName], location); validationError != nil {
			return RuleSet{}, withSource(validationError, source)
		}
		ruleSet.registries[registryName] = document.Registries[registryName]
	}

	return ruleSet, nil
}

func combineInto[Key comparable](rules map[Key]Rule, key Key, rule Rule, location string) error {
	existingRule, exists := rules[key]
	if !exists {
		rules[key] = rule
		return nil
	}
	combinedRule, conflictingFields := existingRule.combine(rule)
	if len(conflictingFields) > 0 {
		return AmbiguousScopeError{Scope: location, Fields: conflictingFields}
	}
	rules[key] = combinedRule
	return nil
}

// Source names where the rules came from.
func (ruleSet RuleSet) Source() string {
	return ruleSet.source
}

// Global returns the global rule with built-in defaults applied.
func (ruleSet RuleSet) Global() Rule {
	return ruleSet.global
}

// Registries returns a copy of the top-level registry definitions.
func (ruleSet RuleSet) Registries() map[string]Registry {
	registries := make(map[string]Registry, len(ruleSet.registries))
	for name, registry := range ruleSet.registries {
		registries[name] = registry
	}
	return registries
}

// Rules lists every declared rule ordered by scope, then name.
func (ruleSet RuleSet) Rules() []ScopedRule {
	scopedRules := []ScopedRule{{Scope: ScopeGlobal, Rule: ruleSet.global}}
	for _, organization := range sortedKeys(ruleSet.organizations) {
		scopedRules = append(scopedRules, ScopedRule{Scope: ScopeOrganization, Organization: organization, Rule: ruleSet.organizations[organization]})
	}
	for _, repository := range sortedKeys(ruleSet.repositories) {
		scopedRules = append(scopedRules, ScopedRule{Scope: ScopeRepository, Repository: repository, Rule: ruleSet.repositories[repository]})
	}

	var ecosystemRules []ScopedRule
	for key, rule := range ruleSet.repositoryEcosystems {
		ecosystemRules = append(ecosystemRules, ScopedRule{Scope: ScopeRepositoryEcosystem, Repository: key.repository, Ecosystem: key.ecosystem, Rule: rule})
	}
	slices.SortFunc(ecosystemRules, func(left ScopedRule, right ScopedRule) int {
		if repositoryOrder := strings.Compare(left.Repository, right.Repository); repositoryOrder != 0 {
			return repositoryOrder
		}
		return ecosystems.Compare(left.Ecosystem, right.Ecosystem)
	})
	return append(scopedRules, ecosystemRules...)
}

func dependencyRuleFromStringHook(sourceType reflect.Type, targetType reflect.Type, data any) (any, error) {
	if sourceType.Kind() != reflect.String || targetType != reflect.TypeOf(DependencyRule{}) {
		return data, nil
	}
	return DependencyRule{DependencyName: data.(string)}, nil
}

func sortedKeys[Value any](values map[string]Value) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func normalizeDirectories(directories []string) []string {
	if directories == nil {
		return nil
	}
	normalizedDirectories := make([]string, 0, len(directories))
	for _, directory := range directories {
		normalizedDirectories = append(normalizedDirectories, ecosystems.NormalizeDirectory(directory))
	}
	slices.Sort(normalizedDirectories)
	return slices.Compact(normalizedDirectories)
}

func withSource(validationError error, source string) error {
	if parseError, isParseError := validationError.(OverrideParseError); isParseError {
		parseError.Source = source
		return parseError
	}
	return validationError
}
