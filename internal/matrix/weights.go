package matrix

// StandardWeights returns the shared weights catalog for a subset, in the
// order benchmarks are scheduled.
func StandardWeights(subset string) ([]WeightsConfig, error) {
	switch subset {
	case SubsetUnquantized:
		return []WeightsConfig{
			{Name: "float32", Precision: Float32},
			{Name: "float16", Precision: Float16},
			{Name: "bfloat16", Precision: BFloat16},
		}, nil
	case SubsetBnB:
		return []WeightsConfig{
			{Name: "4bit-bnb", Precision: Float16, QuantScheme: BnB, QuantParams: map[string]any{"load_in_4bit": true}},
			{Name: "8bit-bnb", Precision: Float16, QuantScheme: BnB, QuantParams: map[string]any{"load_in_8bit": true}},
		}, nil
	case SubsetGPTQ:
		return []WeightsConfig{
			{Name: "4bit-gptq-exllama-v1", Precision: Float16, QuantScheme: GPTQ, QuantParams: gptqParams(1)},
			{Name: "4bit-gptq-exllama-v2", Precision: Float16, QuantScheme: GPTQ, QuantParams: gptqParams(2)},
		}, nil
	case SubsetAWQ:
		return []WeightsConfig{
			{Name: "4bit-awq-gemm", Precision: Float16, QuantScheme: AWQ, QuantParams: map[string]any{"bits": 4, "version": "gemm"}},
			{Name: "4bit-awq-gemv", Precision: Float16, QuantScheme: AWQ, QuantParams: map[string]any{"bits": 4, "version": "gemv"}},
			{Name: "4bit-awq-exllama-v1", Precision: Float16, QuantScheme: AWQ, QuantParams: awqExllamaParams(1)},
			{Name: "4bit-awq-exllama-v2", Precision: Float16, QuantScheme: AWQ, QuantParams: awqExllamaParams(2)},
		}, nil
	default:
		return nil, &UnknownSubsetError{Subset: subset}
	}
}

func gptqParams(version int) map[string]any {
	return map[string]any{
		"bits":         4,
		"use_exllama":  true,
		"version":      version,
		"model_seqlen": 256,
	}
}

func awqExllamaParams(version int) map[string]any {
	return map[string]any{
		"bits":    4,
		"version": "exllama",
		"exllama_config": map[string]any{
			"version":        version,
			"max_input_len":  64,
			"max_batch_size": 1,
		},
	}
}

// SchemeForSubset maps a subset to its quantization scheme.
func SchemeForSubset(subset string) (QuantScheme, error) {
	switch subset {
	case SubsetUnquantized:
		return NoQuant, nil
	case SubsetBnB:
		return BnB, nil
	case SubsetGPTQ:
		return GPTQ, nil
	case SubsetAWQ:
		return AWQ, nil
	}
	return NoQuant, &UnknownSubsetError{Subset: subset}
}
