package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/platform/httpx"
	"github.com/foodhub/api/internal/services"
)

type addressRequest struct {
	Line           string          `json:"line"`
	Location       geoPointPayload `json:"location"`
	DeliveryAreaID string          `json:"deliveryAreaId"`
	Notes          string          `json:"notes"`
	IsDefault      bool            `json:"isDefault"`
}

func (req addressRequest) command(caller services.Caller, addressID string) services.SaveAddressCommand {
	return services.SaveAddressCommand{
		Caller:         caller,
		AddressID:      addressID,
		Line:           req.Line,
		Location:       domain.GeoPoint{Lat: req.Location.Lat, Lng: req.Location.Lng},
		DeliveryAreaID: req.DeliveryAreaID,
		Notes:          req.Notes,
		MakeDefault:    req.IsDefault,
	}
}

type fcmTokenRequest struct {
	Token string `json:"token"`
}

// MeHandlers serves the authenticated customer's profile, addresses and devices.
type MeHandlers struct {
	users     services.UserService
	addresses services.AddressService
}

// NewMeHandlers constructs the /me handlers.
func NewMeHandlers(users services.UserService, addresses services.AddressService) *MeHandlers {
	return &MeHandlers{users: users, addresses: addresses}
}

// Routes registers /me.
func (h *MeHandlers) Routes(r chi.Router) {
	r.Route("/me", func(r chi.Router) {
		r.Get("/", h.getProfile)
		r.Post("/fcm-tokens", h.registerToken)
		r.Delete("/fcm-tokens", h.removeToken)
		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", h.listAddresses)
			r.Post("/", h.createAddress)
			r.Put("/{addressID}", h.updateAddress)
			r.Delete("/{addressID}", h.deleteAddress)
			r.Post("/{addressID}/default", h.setDefaultAddress)
		})
	})
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "profile")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	user, err := h.users.Get(ctx, caller)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", buildUserPayload(user))
}

func (h *MeHandlers) registerToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "profile")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	var req fcmTokenRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	tokens, err := h.users.RegisterFCMToken(ctx, caller, req.Token)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "device registered", map[string]int{"deviceCount": len(tokens)})
}

func (h *MeHandlers) removeToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		writeUnavailable(ctx, w, "profile")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	req := fcmTokenRequest{Token: r.URL.Query().Get("token")}
	if writeDecodeError(ctx, w, decodeJSON(r, &req, true)) {
		return
	}
	if err := h.users.RemoveFCMToken(ctx, caller, req.Token); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "device removed", nil)
}

func (h *MeHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	addrs, err := h.addresses.List(ctx, caller)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := make([]addressPayload, 0, len(addrs))
	for _, addr := range addrs {
		payload = append(payload, buildAddressPayload(addr))
	}
	httpx.WriteSuccess(w, http.StatusOK, "", payload)
}

func (h *MeHandlers) createAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	saved, err := h.addresses.Create(ctx, req.command(caller, ""))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+saved.ID)
	httpx.WriteSuccess(w, http.StatusCreated, "address saved", buildAddressPayload(saved))
}

func (h *MeHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if writeDecodeError(ctx, w, decodeJSON(r, &req, false)) {
		return
	}
	saved, err := h.addresses.Update(ctx, req.command(caller, pathParam(r, "addressID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "address saved", buildAddressPayload(saved))
}

func (h *MeHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.addresses.Delete(ctx, caller, pathParam(r, "addressID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "address deleted", nil)
}

func (h *MeHandlers) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		writeUnavailable(ctx, w, "address")
		return
	}
	caller, ok := callerFromRequest(w, r)
	if !ok {
		return
	}
	addr, err := h.addresses.SetDefault(ctx, caller, pathParam(r, "addressID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "default address updated", buildAddressPayload(addr))
}
