// Package serialization provides JSON helpers for job parameters, masking sensitive values.
package serialization

import (
	"encoding/json"

	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	logger "github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

const (
	moduleName = "serialization"
	maskValue  = "********"
)

// GetMaskedJobParametersMap returns a copy of params with every configured sensitive key masked.
func GetMaskedJobParametersMap(params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return map[string]interface{}{}
	}

	maskedParams := make(map[string]interface{}, len(params))
	for k, v := range params {
		maskedParams[k] = v
	}
	for _, key := range config.GetMaskedParameterKeys() {
		if _, ok := maskedParams[key]; ok {
			maskedParams[key] = maskValue
		}
	}
	return maskedParams
}

// MarshalJobParameters serializes a JobParameters map into JSON, masking sensitive keys as configured.
func MarshalJobParameters(params map[string]interface{}) ([]byte, error) {
	maskedParams := GetMaskedJobParametersMap(params)
	if len(maskedParams) == 0 {
		return []byte("{}"), nil
	}

	data, err := json.Marshal(maskedParams)
	if err != nil {
		logger.Errorf("Failed to serialize JobParameters: %v", err)
		return nil, exception.NewBatchError(moduleName, "Failed to serialize JobParameters", err, false, false)
	}
	return data, nil
}

// UnmarshalJobParameters deserializes JSON into params, replacing its previous content.
func UnmarshalJobParameters(data []byte, params *map[string]interface{}) error {
	*params = make(map[string]interface{})
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if err := json.Unmarshal(data, params); err != nil {
		logger.Errorf("Failed to deserialize JobParameters: %v", err)
		return exception.NewBatchError(moduleName, "Failed to deserialize JobParameters", err, false, false)
	}
	return nil
}
