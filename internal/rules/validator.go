package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

var (
	ruleKeys      = []string{"action", "params"}
	paramSpecKeys = []string{"type", "required"}
)

// ValidationError collects every problem found in a candidate configuration.
// A configuration that produced one must not be applied, not even partially.
type ValidationError struct {
	AlgorithmsNotFound []string
	InvalidOptions     []string
	UnavailableActions []string
	InvalidKeys        []string
	InvalidParams      []string
	MissingParams      []string
	InvalidParamSpecs  []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.AlgorithmsNotFound) > 0 {
		parts = append(parts, "Algorithms not found: "+strings.Join(e.AlgorithmsNotFound, ", ")+";")
	}
	if len(e.InvalidOptions) > 0 {
		parts = append(parts, "These options are invalid: "+strings.Join(e.InvalidOptions, ", ")+";")
	}
	if len(e.UnavailableActions) > 0 {
		parts = append(parts, "These actions are not available: "+strings.Join(e.UnavailableActions, ", ")+";")
	}
	if len(e.InvalidKeys) > 0 {
		parts = append(parts, "Invalid keys: "+strings.Join(e.InvalidKeys, ", ")+". Only [action, params] are allowed;")
	}
	if len(e.InvalidParams) > 0 {
		parts = append(parts, "Invalid action params: "+strings.Join(e.InvalidParams, ", ")+". Please check the actions;")
	}
	if len(e.MissingParams) > 0 {
		parts = append(parts, "These required action params are missing: "+strings.Join(e.MissingParams, ", ")+";")
	}
	if len(e.InvalidParamSpecs) > 0 {
		parts = append(parts, "Invalid parameters: "+strings.Join(e.InvalidParamSpecs, ", ")+". Only [type, required] are allowed;")
	}
	return strings.Join(parts, "\n")
}

func (e *ValidationError) empty() bool {
	return len(e.AlgorithmsNotFound) == 0 &&
		len(e.InvalidOptions) == 0 &&
		len(e.UnavailableActions) == 0 &&
		len(e.InvalidKeys) == 0 &&
		len(e.InvalidParams) == 0 &&
		len(e.MissingParams) == 0 &&
		len(e.InvalidParamSpecs) == 0
}

func (e *ValidationError) normalize() {
	for _, list := range []*[]string{
		&e.AlgorithmsNotFound, &e.InvalidOptions, &e.UnavailableActions,
		&e.InvalidKeys, &e.InvalidParams, &e.MissingParams, &e.InvalidParamSpecs,
	} {
		*list = lo.Uniq(*list)
		slices.Sort(*list)
	}
}

// Validate checks a camera's action configuration against the known
// algorithms and actions and returns it normalized: every algorithm gets an
// "else" branch. All violations are reported at once.
func Validate(candidate models.RawActionDict, algorithms []models.Algorithm, actions []models.Action) (models.ActionDict, error) {
	normalized := make(models.ActionDict, len(candidate))
	if len(candidate) == 0 {
		return normalized, nil
	}

	knownAlgorithms := lo.SliceToMap(algorithms, func(a models.Algorithm) (string, models.Algorithm) {
		return a.Name, a
	})
	knownActions := lo.SliceToMap(actions, func(a models.Action) (string, models.Action) {
		return a.Name, a
	})

	verr := &ValidationError{}
	for _, algorithm := range sortedKeys(candidate) {
		options := candidate[algorithm]

		known, ok := knownAlgorithms[algorithm]
		if !ok {
			verr.AlgorithmsNotFound = append(verr.AlgorithmsNotFound, algorithm)
		}

		branches := make(map[string][]models.Rule, len(options)+1)
		for _, option := range sortedKeys(options) {
			if ok && option != models.DefaultOption && !slices.Contains(known.Options, option) {
				verr.InvalidOptions = append(verr.InvalidOptions, algorithm+"."+option)
			}

			list := make([]models.Rule, 0, len(options[option]))
			for _, raw := range options[option] {
				list = append(list, checkRule(algorithm, raw, knownActions, verr))
			}
			branches[option] = list
		}
		if _, ok := branches[models.DefaultOption]; !ok {
			branches[models.DefaultOption] = []models.Rule{}
		}
		normalized[algorithm] = branches
	}

	if !verr.empty() {
		verr.normalize()
		return nil, verr
	}
	return normalized, nil
}

// checkRule records the rule's violations into verr and returns its typed form.
func checkRule(algorithm string, raw map[string]any, knownActions map[string]models.Action, verr *ValidationError) models.Rule {
	verr.InvalidKeys = append(verr.InvalidKeys, lo.Without(lo.Keys(raw), ruleKeys...)...)

	name, _ := raw["action"].(string)
	rule := models.Rule{Action: name}

	params, malformed := ruleParams(raw["params"])
	if malformed {
		log.Warn().
			Str("algorithm", algorithm).
			Str("action", name).
			Str("params_type", fmt.Sprintf("%T", raw["params"])).
			Msg("rule params is not a mapping, skipping param checks")
	}
	rule.Params = params

	action, ok := knownActions[name]
	if !ok {
		if name == "" {
			name = "<missing>"
		}
		verr.UnavailableActions = append(verr.UnavailableActions, name)
		return rule
	}
	if malformed {
		return rule
	}

	verr.InvalidParams = append(verr.InvalidParams, lo.Without(lo.Keys(params), lo.Keys(action.Params)...)...)
	for param, spec := range action.Params {
		if _, given := params[param]; spec.Required && !given {
			verr.MissingParams = append(verr.MissingParams, param)
		}
	}
	return rule
}

// ruleParams reports malformed when params is present but not a mapping.
func ruleParams(p any) (params map[string]any, malformed bool) {
	if p == nil {
		return nil, false
	}
	params, ok := p.(map[string]any)
	return params, !ok
}

// ValidateParamSpecs checks an Action's parameter declarations: each one
// must carry exactly the "type" and "required" keys.
func ValidateParamSpecs(params map[string]map[string]any) error {
	verr := &ValidationError{}
	for name, spec := range params {
		keys := lo.Keys(spec)
		if len(keys) != len(paramSpecKeys) || len(lo.Without(keys, paramSpecKeys...)) > 0 {
			verr.InvalidParamSpecs = append(verr.InvalidParamSpecs, name)
		}
	}
	if !verr.empty() {
		verr.normalize()
		return verr
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
