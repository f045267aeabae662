package fhir

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// CapabilityStatement is the /fhir/metadata document.
type CapabilityStatement struct {
	ResourceType   string            `json:"resourceType"`
	Status         string            `json:"status"`
	Date           string            `json:"date"`
	Kind           string            `json:"kind"`
	FHIRVersion    string            `json:"fhirVersion"`
	Format         []string          `json:"format"`
	Implementation *CSImplementation `json:"implementation,omitempty"`
	Rest           []CSRest          `json:"rest"`
}

type CSImplementation struct {
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}

type CSRest struct {
	Mode     string       `json:"mode"`
	Resource []CSResource `json:"resource"`
}

type CSResource struct {
	Type        string          `json:"type"`
	Interaction []CSInteraction `json:"interaction"`
	SearchParam []CSSearchParam `json:"searchParam,omitempty"`
}

type CSInteraction struct {
	Code string `json:"code"`
}

type CSSearchParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ReadOnlyResource advertises read and search for a resource type.
func ReadOnlyResource(resourceType string, params ...CSSearchParam) CSResource {
	return CSResource{
		Type:        resourceType,
		Interaction: []CSInteraction{{Code: "read"}, {Code: "search-type"}},
		SearchParam: params,
	}
}

func NewCapabilityStatement(description string, resources ...CSResource) *CapabilityStatement {
	return &CapabilityStatement{
		ResourceType:   "CapabilityStatement",
		Status:         "active",
		Date:           time.Now().UTC().Format("2006-01-02"),
		Kind:           "instance",
		FHIRVersion:    "4.0.1",
		Format:         []string{"json"},
		Implementation: &CSImplementation{Description: description},
		Rest:           []CSRest{{Mode: "server", Resource: resources}},
	}
}

// CapabilityHandler serves cs, filling in the implementation URL from the
// request host.
func CapabilityHandler(cs *CapabilityStatement) echo.HandlerFunc {
	return func(c echo.Context) error {
		out := *cs
		if cs.Implementation != nil {
			impl := *cs.Implementation
			impl.URL = c.Scheme() + "://" + c.Request().Host + "/fhir"
			out.Implementation = &impl
		}
		return c.JSON(http.StatusOK, out)
	}
}
