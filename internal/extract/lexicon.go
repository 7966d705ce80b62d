package extract

// promptEngineeringLexicon is the closed set of prompt-engineering terms
// recognized by the keyword pass, matched case-insensitively.
var promptEngineeringLexicon = []string{
	"prompt engineering",
	"prompt design",
	"prompt template",
	"prompt injection",
	"prompt leaking",
	"prompt chaining",
	"prompt tuning",
	"prompt optimization",
	"system prompt",
	"user prompt",
	"meta prompt",
	"negative prompt",
	"zero-shot prompting",
	"one-shot prompting",
	"few-shot prompting",
	"in-context learning",
	"chain of thought",
	"chain-of-thought prompting",
	"tree of thoughts",
	"graph of thoughts",
	"self-consistency",
	"self-reflection",
	"self-ask",
	"least-to-most prompting",
	"step-back prompting",
	"directional stimulus prompting",
	"generated knowledge prompting",
	"automatic prompt engineer",
	"retrieval augmented generation",
	"retrieval-augmented generation",
	"react prompting",
	"program-aided language model",
	"instruction tuning",
	"instruction following",
	"fine-tuning",
	"parameter-efficient fine-tuning",
	"low-rank adaptation",
	"reinforcement learning from human feedback",
	"direct preference optimization",
	"constitutional ai",
	"large language model",
	"small language model",
	"foundation model",
	"context window",
	"context length",
	"token limit",
	"tokenization",
	"temperature",
	"top-p sampling",
	"top-k sampling",
	"nucleus sampling",
	"greedy decoding",
	"beam search",
	"hallucination",
	"grounding",
	"jailbreaking",
	"red teaming",
	"guardrails",
	"output parsing",
	"structured output",
	"function calling",
	"tool use",
	"agentic workflow",
	"multi-agent system",
	"embedding",
	"vector database",
	"semantic search",
	"similarity search",
	"reranking",
	"knowledge graph",
	"knowledge distillation",
	"model alignment",
	"system message",
	"role prompting",
	"persona prompting",
}

// peAbbreviations maps prompt-engineering terms to the abbreviation in
// common use, where one exists.
var peAbbreviations = map[string]string{
	"prompt engineering":             "PE",
	"in-context learning":            "ICL",
	"chain of thought":               "CoT",
	"chain-of-thought prompting":     "CoT",
	"tree of thoughts":               "ToT",
	"graph of thoughts":              "GoT",
	"automatic prompt engineer":      "APE",
	"retrieval augmented generation": "RAG",
	"retrieval-augmented generation": "RAG",
	"react prompting":                "ReAct",
	"program-aided language model":   "PAL",
	"parameter-efficient fine-tuning": "PEFT",
	"low-rank adaptation":            "LoRA",
	"reinforcement learning from human feedback": "RLHF",
	"direct preference optimization": "DPO",
	"constitutional ai":              "CAI",
	"large language model":           "LLM",
	"small language model":           "SLM",
	"multi-agent system":             "MAS",
	"knowledge graph":                "KG",
}

// commonLexicon holds general technical terms matched in every document
// regardless of domain.
var commonLexicon = []string{
	"algorithm",
	"architecture",
	"automation",
	"benchmark",
	"data structure",
	"database",
	"dataset",
	"evaluation",
	"framework",
	"heuristic",
	"inference",
	"latency",
	"methodology",
	"optimization",
	"pipeline",
	"scalability",
	"throughput",
	"workflow",
}

// domainLexicons are optional per-domain term sets selected by the
// `domain` metadata attribute or extractor configuration.
var domainLexicons = map[string][]string{
	"ai": {
		"artificial intelligence",
		"machine learning",
		"deep learning",
		"neural network",
		"transformer",
		"attention mechanism",
		"supervised learning",
		"unsupervised learning",
		"reinforcement learning",
		"transfer learning",
		"generative model",
		"classifier",
		"regression",
		"overfitting",
		"gradient descent",
		"backpropagation",
		"loss function",
		"training data",
	},
	"programming": {
		"compiler",
		"interpreter",
		"garbage collection",
		"concurrency",
		"goroutine",
		"mutex",
		"recursion",
		"polymorphism",
		"inheritance",
		"encapsulation",
		"dependency injection",
		"unit test",
		"refactoring",
		"version control",
		"continuous integration",
		"api design",
		"error handling",
		"memory management",
	},
}
