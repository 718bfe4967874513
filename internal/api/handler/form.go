package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/faciam-dev/gcform/internal/api/schema"
	"github.com/faciam-dev/gcform/internal/audit"
	"github.com/faciam-dev/gcform/internal/logger"
	"github.com/faciam-dev/gcform/internal/server/middleware"
	"github.com/faciam-dev/gcform/internal/service"
	"github.com/faciam-dev/gcform/internal/store"
	"github.com/faciam-dev/gcform/pkg/builder"
	"github.com/faciam-dev/gcform/pkg/codec"
	"github.com/faciam-dev/gcform/pkg/fieldtype"
	model "github.com/faciam-dev/gcform/pkg/schema"
)

type FormHandler struct {
	Service *service.Service
}

type formPath struct {
	ID string `path:"id"`
}

type fieldPath struct {
	ID      string `path:"id"`
	FieldID string `path:"fieldId"`
}

type fieldTypesOutput struct {
	Body []fieldtype.Group
}

type listFormsOutput struct {
	Body []store.Summary
}

type createFormInput struct {
	Body schema.CreateForm
}

type documentOutput struct {
	Body codec.Document
}

type rawFormInput struct {
	ID      string `path:"id"`
	RawBody []byte `contentType:"application/json"`
}

type rawFieldInput struct {
	ID      string `path:"id"`
	FieldID string `path:"fieldId"`
	RawBody []byte `contentType:"application/json"`
}

type addFieldInput struct {
	ID   string `path:"id"`
	Body schema.AddField
}

type fieldChangeOutput struct {
	Location string `header:"Location"`
	Body     struct {
		FieldID string         `json:"field_id"`
		Form    codec.Document `json:"form"`
	}
}

type moveFieldInput struct {
	ID      string `path:"id"`
	FieldID string `path:"fieldId"`
	Body    schema.MoveField
}

type valuesInput struct {
	ID   string `path:"id"`
	Body schema.Values
}

type visibilityOutput struct {
	Body schema.Visibility
}

type reportOutput struct {
	Body schema.ValidationReport
}

type revisionsInput struct {
	ID    string `path:"id"`
	Limit int    `query:"limit" minimum:"1" maximum:"500" default:"50"`
	Diff  bool   `query:"diff"`
}

type revisionsOutput struct {
	Body []audit.Revision
}

type submitInput struct {
	Slug string `path:"slug"`
	Body schema.Values
}

type submitOutput struct {
	Body schema.SubmissionReceipt
}

// RegisterPublic registers the operations that need no authoring token.
// Submit resolves an optional token itself.
func RegisterPublic(api huma.API, h *FormHandler, tokens middleware.Tokens) {
	huma.Register(api, huma.Operation{
		OperationID: "listFieldTypes",
		Method:      http.MethodGet,
		Path:        "/v1/field-types",
		Summary:     "List field types grouped by category",
		Tags:        []string{"FieldType"},
	}, h.fieldTypes)
	huma.Register(api, huma.Operation{
		OperationID:   "submitForm",
		Method:        http.MethodPost,
		Path:          "/v1/submit/{slug}",
		Summary:       "Submit answers to a published form",
		Tags:          []string{"Submission"},
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{middleware.Authenticate(api, tokens, false)},
	}, h.submit)
}

// Register registers the authoring operations.
func Register(api huma.API, h *FormHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "listForms",
		Method:      http.MethodGet,
		Path:        "/v1/forms",
		Summary:     "List forms",
		Tags:        []string{"Form"},
	}, h.list)
	huma.Register(api, huma.Operation{
		OperationID:   "createForm",
		Method:        http.MethodPost,
		Path:          "/v1/forms",
		Summary:       "Create a draft form",
		Tags:          []string{"Form"},
		DefaultStatus: http.StatusCreated,
	}, h.create)
	huma.Register(api, huma.Operation{
		OperationID: "getForm",
		Method:      http.MethodGet,
		Path:        "/v1/forms/{id}",
		Summary:     "Get a form document",
		Tags:        []string{"Form"},
		Errors:      []int{http.StatusNotFound},
	}, h.get)
	huma.Register(api, huma.Operation{
		OperationID: "replaceForm",
		Method:      http.MethodPut,
		Path:        "/v1/forms/{id}",
		Summary:     "Replace a form document",
		Tags:        []string{"Form"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, h.replace)
	huma.Register(api, huma.Operation{
		OperationID: "updateForm",
		Method:      http.MethodPatch,
		Path:        "/v1/forms/{id}",
		Summary:     "Update form settings",
		Tags:        []string{"Form"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, h.updateForm)
	huma.Register(api, huma.Operation{
		OperationID:   "deleteForm",
		Method:        http.MethodDelete,
		Path:          "/v1/forms/{id}",
		Summary:       "Delete a form",
		Tags:          []string{"Form"},
		Errors:        []int{http.StatusNotFound},
		DefaultStatus: http.StatusNoContent,
	}, h.deleteForm)
	huma.Register(api, huma.Operation{
		OperationID:   "addField",
		Method:        http.MethodPost,
		Path:          "/v1/forms/{id}/fields",
		Summary:       "Append a field of a type",
		Tags:          []string{"Field"},
		Errors:        []int{http.StatusNotFound, http.StatusUnprocessableEntity},
		DefaultStatus: http.StatusCreated,
	}, h.addField)
	huma.Register(api, huma.Operation{
		OperationID: "updateField",
		Method:      http.MethodPatch,
		Path:        "/v1/forms/{id}/fields/{fieldId}",
		Summary:     "Update a field",
		Tags:        []string{"Field"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, h.updateField)
	huma.Register(api, huma.Operation{
		OperationID: "deleteField",
		Method:      http.MethodDelete,
		Path:        "/v1/forms/{id}/fields/{fieldId}",
		Summary:     "Delete a field",
		Tags:        []string{"Field"},
		Errors:      []int{http.StatusNotFound},
	}, h.deleteField)
	huma.Register(api, huma.Operation{
		OperationID:   "duplicateField",
		Method:        http.MethodPost,
		Path:          "/v1/forms/{id}/fields/{fieldId}/duplicate",
		Summary:       "Duplicate a field",
		Tags:          []string{"Field"},
		Errors:        []int{http.StatusNotFound},
		DefaultStatus: http.StatusCreated,
	}, h.duplicateField)
	huma.Register(api, huma.Operation{
		OperationID: "moveField",
		Method:      http.MethodPost,
		Path:        "/v1/forms/{id}/fields/{fieldId}/move",
		Summary:     "Move a field to a position",
		Tags:        []string{"Field"},
		Errors:      []int{http.StatusNotFound},
	}, h.moveField)
	huma.Register(api, huma.Operation{
		OperationID: "publishForm",
		Method:      http.MethodPost,
		Path:        "/v1/forms/{id}/publish",
		Summary:     "Publish a form",
		Tags:        []string{"Form"},
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, h.publish)
	huma.Register(api, huma.Operation{
		OperationID: "unpublishForm",
		Method:      http.MethodPost,
		Path:        "/v1/forms/{id}/unpublish",
		Summary:     "Return a form to draft",
		Tags:        []string{"Form"},
		Errors:      []int{http.StatusNotFound},
	}, h.unpublish)
	huma.Register(api, huma.Operation{
		OperationID: "evaluateVisibility",
		Method:      http.MethodPost,
		Path:        "/v1/forms/{id}/visibility",
		Summary:     "Evaluate field visibility for answers",
		Tags:        []string{"Preview"},
		Errors:      []int{http.StatusNotFound},
	}, h.visibility)
	huma.Register(api, huma.Operation{
		OperationID: "validateAnswers",
		Method:      http.MethodPost,
		Path:        "/v1/forms/{id}/validate",
		Summary:     "Validate answers without submitting",
		Tags:        []string{"Preview"},
		Errors:      []int{http.StatusNotFound},
	}, h.validate)
	huma.Register(api, huma.Operation{
		OperationID: "listRevisions",
		Method:      http.MethodGet,
		Path:        "/v1/forms/{id}/revisions",
		Summary:     "List form revisions",
		Tags:        []string{"Form"},
		Errors:      []int{http.StatusNotFound},
	}, h.revisions)
}

func (h *FormHandler) fieldTypes(ctx context.Context, _ *struct{}) (*fieldTypesOutput, error) {
	return &fieldTypesOutput{Body: h.Service.FieldTypes()}, nil
}

func (h *FormHandler) list(ctx context.Context, _ *struct{}) (*listFormsOutput, error) {
	items, err := h.Service.List(ctx)
	if err != nil {
		return nil, problem(err)
	}
	if items == nil {
		items = []store.Summary{}
	}
	return &listFormsOutput{Body: items}, nil
}

func (h *FormHandler) create(ctx context.Context, in *createFormInput) (*documentOutput, error) {
	doc, err := h.Service.Create(ctx, middleware.ActorFromContext(ctx), model.Form{
		Name:        in.Body.Name,
		Slug:        in.Body.Slug,
		Description: in.Body.Description,
	})
	if err != nil {
		return nil, problem(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *FormHandler) get(ctx context.Context, in *formPath) (*documentOutput, error) {
	doc, err := h.Service.Get(ctx, in.ID)
	if err != nil {
		return nil, problem(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *FormHandler) replace(ctx context.Context, in *rawFormInput) (*documentOutput, error) {
	if len(in.RawBody) == 0 {
		return nil, huma.Error400BadRequest("document body required")
	}
	doc, err := codec.Decode(in.RawBody)
	if err != nil {
		if errors.Is(err, codec.ErrUnsupportedVersion) {
			return nil, problem(err)
		}
		return nil, huma.Error400BadRequest("malformed document", err)
	}
	doc, err = h.Service.Replace(ctx, middleware.ActorFromContext(ctx), in.ID, doc)
	if err != nil {
		return nil, problem(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *FormHandler) updateForm(ctx context.Context, in *rawFormInput) (*documentOutput, error) {
	if len(in.RawBody) == 0 {
		return nil, huma.Error400BadRequest("patch body required")
	}
	doc, err := h.Service.UpdateForm(ctx, middleware.ActorFromContext(ctx), in.ID, in.RawBody)
	if err != nil {
		return nil, problem(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *FormHandler) deleteForm(ctx context.Context, in *formPath) (*struct{}, error) {
	if err := h.Service.Delete(ctx, in.ID); err != nil {
		return nil, problem(err)
	}
	return &struct{}{}, nil
}

func (h *FormHandler) addField(ctx context.Context, in *addFieldInput) (*fieldChangeOutput, error) {
	doc, fieldID, err := h.Service.AddField(ctx, middleware.ActorFromContext(ctx), in.ID, model.FieldType(in.Body.Type))
	if err != nil {
		return nil, problem(err)
	}
	return fieldChange(in.ID, fieldID, doc), nil
}

func (h *FormHandler) updateField(ctx context.Context, in *rawFieldInput) (*documentOutput, error) {
	if len(in.RawBody) == 0 {
		return nil, huma.Error400BadRequest("patch body required")
	}
	doc, err := h.Service.UpdateField(ctx, middleware.ActorFromContext(ctx), in.ID, in.FieldID, in.RawBody)
	if err != nil {
		return nil, problem(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *FormHandler) deleteField(ctx context.Context, in *fieldPath) (*documentOutput, error) {
	doc, err := h.Service.DeleteField(ctx, middleware.ActorFromContext(ctx), in.ID, in.FieldID)
	if err != nil {
		return nil, problem(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *FormHandler) duplicateField(ctx context.Context, in *fieldPath) (*fieldChangeOutput, error) {
	doc, copyID, err := h.Service.DuplicateField(ctx, middleware.ActorFromContext(ctx), in.ID, in.FieldID)
	if err != nil {
		return nil, problem(err)
	}
	return fieldChange(in.ID, copyID, doc), nil
}

func (h *FormHandler) moveField(ctx context.Context, in *moveFieldInput) (*documentOutput, error) {
	doc, err := h.Service.MoveField(ctx, middleware.ActorFromContext(ctx), in.ID, in.FieldID, in.Body.Position)
	if err != nil {
		return nil, problem(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *FormHandler) publish(ctx context.Context, in *formPath) (*documentOutput, error) {
	doc, err := h.Service.Publish(ctx, middleware.ActorFromContext(ctx), in.ID)
	if err != nil {
		return nil, problem(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *FormHandler) unpublish(ctx context.Context, in *formPath) (*documentOutput, error) {
	doc, err := h.Service.Unpublish(ctx, middleware.ActorFromContext(ctx), in.ID)
	if err != nil {
		return nil, problem(err)
	}
	return &documentOutput{Body: doc}, nil
}

func (h *FormHandler) visibility(ctx context.Context, in *valuesInput) (*visibilityOutput, error) {
	vis, err := h.Service.Visibility(ctx, in.ID, in.Body.Values)
	if err != nil {
		return nil, problem(err)
	}
	return &visibilityOutput{Body: schema.Visibility{Visible: vis}}, nil
}

func (h *FormHandler) validate(ctx context.Context, in *valuesInput) (*reportOutput, error) {
	res, err := h.Service.Validate(ctx, in.ID, in.Body.Values)
	if err != nil {
		return nil, problem(err)
	}
	return &reportOutput{Body: schema.Report(res)}, nil
}

func (h *FormHandler) revisions(ctx context.Context, in *revisionsInput) (*revisionsOutput, error) {
	revs, err := h.Service.Revisions(ctx, in.ID, in.Limit, in.Diff)
	if err != nil {
		return nil, problem(err)
	}
	if revs == nil {
		revs = []audit.Revision{}
	}
	return &revisionsOutput{Body: revs}, nil
}

func (h *FormHandler) submit(ctx context.Context, in *submitInput) (*submitOutput, error) {
	res, err := h.Service.Submit(ctx, in.Slug, in.Body.Values, middleware.Authenticated(ctx))
	if err != nil {
		return nil, problem(err)
	}
	if !res.OK() {
		details := make([]error, 0, len(res.Errors))
		for _, e := range res.Errors {
			details = append(details, &huma.ErrorDetail{
				Location: "body.values." + e.FieldID(),
				Message:  e.Error(),
				Value:    string(e.Code()),
			})
		}
		return nil, huma.Error422UnprocessableEntity("submission rejected", details...)
	}
	out := &submitOutput{}
	out.Body.FormID = res.FormID
	out.Body.AcceptedAt = res.AcceptedAt.UTC()
	out.Body.Payload = res.Payload
	return out, nil
}

func fieldChange(formID, fieldID string, doc codec.Document) *fieldChangeOutput {
	out := &fieldChangeOutput{Location: "/v1/forms/" + formID + "/fields/" + fieldID}
	out.Body.FieldID = fieldID
	out.Body.Form = doc
	return out
}

// problem maps service errors to HTTP errors.
func problem(err error) error {
	switch {
	case service.IsNotFound(err):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, builder.ErrPublishEmpty), errors.Is(err, service.ErrSlugTaken):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, model.ErrNotAccepting):
		return huma.Error403Forbidden(err.Error())
	case errors.Is(err, builder.ErrInvalidField),
		errors.Is(err, builder.ErrInvalidModel),
		errors.Is(err, builder.ErrInvalidRule),
		errors.Is(err, builder.ErrDuplicateOption),
		errors.Is(err, builder.ErrEmptyOptions),
		errors.Is(err, model.ErrUnknownFieldType),
		errors.Is(err, codec.ErrUnsupportedVersion):
		return huma.NewError(http.StatusUnprocessableEntity, err.Error())
	}
	logger.L.Error("form request", "err", err)
	return huma.Error500InternalServerError("internal error")
}
