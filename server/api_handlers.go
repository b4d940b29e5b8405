package server

import (
	"encoding/json"
	"net/http"
	"time"

	"wx_herald/dto"
	"wx_herald/logic"
	"wx_herald/shared"
)

// apiHandlerGroup is the command API: the door through which weather data
// enters when no polling source is wired in, plus a few ops levers.
type apiHandlerGroup struct {
	cfg       *shared.Config
	logger    shared.ILogger
	publisher logic.IPublisher
	delivery  logic.IDelivery
}

func NewApiHandlerGroup(
	cfg *shared.Config,
	logger shared.ILogger,
	publisher logic.IPublisher,
	delivery logic.IDelivery,
) IHandlerGroup {
	res := apiHandlerGroup{
		cfg:       cfg,
		logger:    logger,
		publisher: publisher,
		delivery:  delivery,
	}
	return &res
}

func (hg *apiHandlerGroup) Prefix() string {
	return "/api"
}

func (hg *apiHandlerGroup) GroupDefs() []handlerDef {
	return []handlerDef{
		{"POST", "/forecasts", func(w http.ResponseWriter, r *http.Request) { hg.postForecasts(w, r) }},
		{"POST", "/alerts", func(w http.ResponseWriter, r *http.Request) { hg.postAlerts(w, r) }},
		{"POST", "/queue/drain", func(w http.ResponseWriter, r *http.Request) { hg.postQueueDrain(w, r) }},
	}
}

func (hg *apiHandlerGroup) AuthMW() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return hg.authMW(next)
	}
}

func (hg *apiHandlerGroup) authMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var apiKey = r.Header.Get(apiKeyHeader)
		found := false
		for _, key := range hg.cfg.Secrets.ApiKeys {
			if apiKey == key {
				found = true
			}
		}
		if !found {
			keyPart := apiKey
			if len(apiKey) > 4 {
				keyPart = apiKey[:4] + "..."
			}
			hg.logger.Warnf("API request with missing or invalid key '%s': %s", keyPart, r.URL.Path)
			writeErrorResponse(w, badApiKeyStr, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (hg *apiHandlerGroup) postForecasts(w http.ResponseWriter, r *http.Request) {

	hg.logger.Info("POST /api/forecasts: Request received")

	bodyBytes := readBody(hg.logger, w, r)
	if bodyBytes == nil {
		return
	}
	var req dto.PostForecastReq
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		writeErrorResponse(w, "Request body is not valid JSON", http.StatusBadRequest)
		return
	}

	slotTime := time.Now().UTC()
	if req.SlotTime != "" {
		var err error
		if slotTime, err = time.Parse(time.RFC3339, req.SlotTime); err != nil {
			writeErrorResponse(w, "Invalid 'slotTime'; must be RFC3339", http.StatusBadRequest)
			return
		}
	}
	if shared.SlotHour(req.PostType) < 0 {
		writeErrorResponse(w, "Invalid 'postType'", http.StatusBadRequest)
		return
	}

	published, err := hg.publisher.PublishForecast(req.Location, req.PostType, slotTime, &req.Forecast)
	if err != nil {
		hg.logger.Errorf("Failed to publish forecast: %v", err)
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJsonResponse(hg.logger, w, dto.PublishResp{Published: published})
}

func (hg *apiHandlerGroup) postAlerts(w http.ResponseWriter, r *http.Request) {

	hg.logger.Info("POST /api/alerts: Request received")

	bodyBytes := readBody(hg.logger, w, r)
	if bodyBytes == nil {
		return
	}
	var req dto.PostAlertReq
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		writeErrorResponse(w, "Request body is not valid JSON", http.StatusBadRequest)
		return
	}

	published, err := hg.publisher.PublishAlert(req.Location, &req.Alert)
	if err != nil {
		hg.logger.Errorf("Failed to publish alert: %v", err)
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJsonResponse(hg.logger, w, dto.PublishResp{Published: published})
}

func (hg *apiHandlerGroup) postQueueDrain(w http.ResponseWriter, r *http.Request) {

	hg.logger.Info("POST /api/queue/drain: Request received")

	res, err := hg.delivery.DrainQueue()
	if err != nil {
		hg.logger.Errorf("Failed to drain retry queue: %v", err)
		writeErrorResponse(w, internalErrorStr, http.StatusInternalServerError)
		return
	}

	writeJsonResponse(hg.logger, w, dto.DrainResp{
		Attempted: res.Attempted,
		Delivered: res.Delivered,
		Requeued:  res.Requeued,
		Dropped:   res.Dropped,
	})
}
