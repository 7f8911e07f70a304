package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/julienschmidt/httprouter"
	helper "github.com/lintang-b-s/osmroadlength/pkg/http/router/routerhelper"
	"go.uber.org/zap"
)

// maximum accepted request body, 64 MiB
const maxBodyBytes = 64 << 20

type roadLengthAPI struct {
	roadLengthService RoadLengthService
	log               *zap.Logger
	validate          *validator.Validate
	trans             ut.Translator
}

func New(roadLengthService RoadLengthService, log *zap.Logger) *roadLengthAPI {
	validate := validator.New()
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	return &roadLengthAPI{
		roadLengthService: roadLengthService,
		log:               log,
		validate:          validate,
		trans:             trans,
	}
}

func (api *roadLengthAPI) Routes(group *helper.RouteGroup) {
	group.POST("/roadLengths", api.roadLengths)
}

func (api *roadLengthAPI) roadLengths(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request roadLengthRequest

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&request)
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := r.Body.Close(); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}

	if err := api.validate.Struct(request); err != nil {
		vv := translateError(err, api.trans)
		vvString := []string{}
		for _, v := range vv {
			vvString = append(vvString, v.Error())
		}
		api.BadRequestResponse(w, r, fmt.Errorf("validation error: %v", vvString))
		return
	}

	lengths, err := api.roadLengthService.ComputeLengths(r.Context(), request.Classes, request.toRoadSegments(),
		request.IncludeGeometry)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	headers := make(http.Header)
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewRoadLengthResponse(lengths)}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}
