package server

import (
	"blueprint/internal/generation"
	"blueprint/internal/llm"
)

const (
	GenerationServiceName = "blueprint.v1.GenerationService"
	CatalogServiceName    = "blueprint.v1.CatalogService"
	TemplateServiceName   = "blueprint.v1.TemplateService"
	BundleServiceName     = "blueprint.v1.BundleService"

	GenerateProjectProcedure       = "/" + GenerationServiceName + "/GenerateProject"
	GenerateFromTemplateProcedure  = "/" + GenerationServiceName + "/GenerateFromTemplate"
	GenerateProjectStreamProcedure = "/" + GenerationServiceName + "/GenerateProjectStream"
	ListModelsProcedure            = "/" + CatalogServiceName + "/ListModels"
	ListTemplatesProcedure         = "/" + TemplateServiceName + "/ListTemplates"
	GetTemplateProcedure           = "/" + TemplateServiceName + "/GetTemplate"
	GetBundleProcedure             = "/" + BundleServiceName + "/GetBundle"
)

type GenerateProjectRequest struct {
	Input     generation.ProjectInput `json:"input"`
	Selection llm.PartialSelection    `json:"selection"`
}

type GenerateFromTemplateRequest struct {
	TemplateID  string `json:"templateId"`
	Description string `json:"description"`
	ModelID     string `json:"modelId,omitempty"`
}

type GenerateResponse struct {
	Bundle generation.Bundle `json:"bundle"`
}

type ListModelsRequest struct {
	Capability string `json:"capability,omitempty"`
	Provider   string `json:"provider,omitempty"`
}

type ListModelsResponse struct {
	Models          []llm.AIModel `json:"models"`
	DefaultModel    string        `json:"defaultModel"`
	DefaultFallback string        `json:"defaultFallback,omitempty"`
}

type ListTemplatesRequest struct {
	Category string `json:"category,omitempty"`
}

type ListTemplatesResponse struct {
	Templates []generation.ProjectTemplate `json:"templates"`
}

type GetTemplateRequest struct {
	ID string `json:"id"`
}

type GetTemplateResponse struct {
	Template generation.ProjectTemplate `json:"template"`
}

type GetBundleRequest struct {
	RunID string `json:"runId"`
	// Markdown also returns the rendered document.
	Markdown bool `json:"markdown,omitempty"`
}

type GetBundleResponse struct {
	Bundle   generation.Bundle `json:"bundle"`
	Markdown string            `json:"markdown,omitempty"`
}
