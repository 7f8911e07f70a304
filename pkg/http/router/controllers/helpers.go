package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/lintang-b-s/osmroadlength/pkg/util"
	"go.uber.org/zap"
)

type envelope map[string]interface{}

func (api *roadLengthAPI) writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	for key, value := range headers {
		w.Header()[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

func (api *roadLengthAPI) errorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var resp errorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	if err := api.writeJSON(w, status, resp, nil); err != nil {
		api.log.Error("can't write error response", zap.Error(err), zap.String("path", r.URL.Path))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (api *roadLengthAPI) BadRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.errorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
}

func (api *roadLengthAPI) ServerErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.log.Error("server error", zap.Error(err), zap.String("path", r.URL.Path))
	api.errorResponse(w, r, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", util.MessageInternalServerError)
}

func (api *roadLengthAPI) getStatusCode(w http.ResponseWriter, r *http.Request, err error) {
	var ierr *util.Error
	if !errors.As(err, &ierr) {
		api.ServerErrorResponse(w, r, err)
		return
	}
	switch ierr.Code() {
	case util.ErrBadParamInput, util.ErrParseGeometry, util.ErrUnsupportedGeometry:
		api.BadRequestResponse(w, r, err)
	case util.ErrNotFound:
		api.errorResponse(w, r, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		api.ServerErrorResponse(w, r, err)
	}
}

func translateError(err error, trans ut.Translator) []error {
	if err == nil {
		return nil
	}
	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return []error{err}
	}
	errs := make([]error, 0, len(validatorErrs))
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}
