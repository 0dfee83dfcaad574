package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys shared by the observer wrappers.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrToolCount   = attribute.Key("llm.tool.count")
	AttrToolNames   = attribute.Key("llm.tool.names")

	AttrEmbedTextCount  = attribute.Key("llm.embed.text_count")
	AttrEmbedDimensions = attribute.Key("llm.embed.dimensions")
)
