package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"fundamental-analyzer/internal/domain"
	"fundamental-analyzer/internal/ml/features"
	"fundamental-analyzer/internal/ml/inference"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	fieldCompany      = "Company"
	fieldCurrentPrice = "current_price"
)

// Predict godoc
// @Summary      Predict a company's price move
// @Description  Runs the sector's regression and classification models on the posted fundamentals, stores the result under predictions/{sector}/{company}/results and returns it. Every key other than Company and current_price is treated as a fundamental.
// @Tags         predict
// @Accept       json
// @Produce      json
// @Param        sector  path      string                  true  "Sector"  Enums(banking, it, auto, power, real_estate, telecom, energy, metals)
// @Param        body    body      map[string]interface{}  true  "Company, current_price and fundamentals"
// @Success      200     {object}  domain.PredictionResult
// @Failure      400     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /predict/{sector} [post]
func (h *Handler) Predict(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.predict")
	defer span.End()

	sector, err := domain.ParseSector(c.Param("sector"))
	if err != nil || h.predictor == nil || !h.predictor.Supports(sector) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sector"})
		return
	}
	span.SetAttributes(attribute.String("sector", sector.String()))

	body, ok := decodeBody(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No JSON body provided"})
		return
	}

	rawCompany, ok := body[fieldCompany]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required field: " + fieldCompany})
		return
	}
	rawPrice, ok := body[fieldCurrentPrice]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required field: " + fieldCurrentPrice})
		return
	}
	delete(body, fieldCompany)
	delete(body, fieldCurrentPrice)

	company, ok := rawCompany.(string)
	if !ok || !domain.ValidCompany(company) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid value for field: " + fieldCompany})
		return
	}
	currentPrice, err := features.ToFloat(rawPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid value for field: " + fieldCurrentPrice})
		return
	}

	result, err := h.predictor.Predict(ctx, sector, company, domain.Fundamentals(body), currentPrice)
	if err != nil {
		status, msg := classifyPredictError(err)
		event := log.Ctx(ctx).Debug()
		if status >= http.StatusInternalServerError {
			event = log.Ctx(ctx).Error()
		}
		event.Err(err).Str("sector", sector.String()).Str("company", company).Msg("prediction failed")
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, result)
}

// decodeBody returns the request body as a non-empty JSON object. Anything
// else, including malformed JSON, is treated as no body at all.
func decodeBody(c *gin.Context) (map[string]any, bool) {
	raw, err := c.GetRawData()
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || len(body) == 0 {
		return nil, false
	}
	return body, true
}

func classifyPredictError(err error) (int, string) {
	var valueErr *features.ValueError
	switch {
	case errors.As(err, &valueErr):
		return http.StatusBadRequest, fmt.Sprintf("Invalid value for feature: %s", valueErr.Feature)
	case errors.Is(err, inference.ErrMissingCompany):
		return http.StatusBadRequest, "Invalid value for field: " + fieldCompany
	case errors.Is(err, domain.ErrUnknownSector):
		return http.StatusBadRequest, "Invalid sector"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
