package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"listmyspace/server/internal/database"
	"listmyspace/server/internal/geocoding"
	"listmyspace/server/internal/geometry"
	"listmyspace/server/internal/models"
	"listmyspace/server/internal/search"
	"listmyspace/server/internal/storage"
)

// PropertyForm is a listing create or update, sent as multipart form or JSON.
// Omitted fields are left unchanged on update.
type PropertyForm struct {
	PropertyType string `form:"property_type" json:"property_type"`
	// OwnerID is only honored for administrators
	OwnerID *uint `form:"owner_id" json:"owner_id"`

	Title       *string  `form:"title" json:"title" binding:"omitempty,max=200"`
	Description *string  `form:"description" json:"description"`
	AdAction    *string  `form:"ad_action" json:"ad_action" binding:"omitempty,adaction"`
	Street      *string  `form:"street" json:"street" binding:"omitempty,max=255"`
	PostalCode  *string  `form:"postal_code" json:"postal_code" binding:"omitempty,max=20"`
	City        *string  `form:"city" json:"city" binding:"omitempty,max=100"`
	State       *string  `form:"state" json:"state" binding:"omitempty,max=100"`
	Country     *string  `form:"country" json:"country" binding:"omitempty,max=100"`
	Price       *float64 `form:"price" json:"price" binding:"omitempty,gte=0"`

	Rooms        *int     `form:"rooms" json:"rooms" binding:"omitempty,gte=0"`
	SurfaceArea  *float64 `form:"surface_area" json:"surface_area" binding:"omitempty,gte=0"`
	LandArea     *float64 `form:"land_area" json:"land_area" binding:"omitempty,gte=0"`
	Category     *string  `form:"category" json:"category" binding:"omitempty,commercialcategory"`
	LandType     *string  `form:"land_type" json:"land_type" binding:"omitempty,landtype"`
	LandCategory *string  `form:"land_category" json:"land_category" binding:"omitempty,landcategory"`

	// Features replaces the listing's tags when present; entries may be comma-separated
	Features []string `form:"features" json:"features"`
}

func (f PropertyForm) fields() models.PropertyFields {
	return models.PropertyFields{
		Title:        f.Title,
		Description:  f.Description,
		AdAction:     f.AdAction,
		Street:       f.Street,
		PostalCode:   f.PostalCode,
		City:         f.City,
		State:        f.State,
		Country:      f.Country,
		Price:        f.Price,
		Rooms:        f.Rooms,
		SurfaceArea:  f.SurfaceArea,
		LandArea:     f.LandArea,
		Category:     f.Category,
		LandType:     f.LandType,
		LandCategory: f.LandCategory,
	}
}

// PropertyRefRequest names a listing in a request body or query
type PropertyRefRequest struct {
	PropertyType string `form:"property_type" json:"property_type" binding:"required,propertykind"`
	PropertyID   uint   `form:"property_id" json:"property_id" binding:"required"`
}

func (r PropertyRefRequest) Ref() models.PropertyRef {
	kind, _ := models.ParsePropertyKind(r.PropertyType)
	return models.PropertyRef{Kind: kind, ID: r.PropertyID}
}

func propertyView(p models.Property) gin.H {
	return gin.H{
		"property_type": p.Kind(),
		"property":      p,
	}
}

func (h *Handler) SearchProperties(c *gin.Context) {
	page, ok := h.search(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, page)
}

// PropertiesMap returns the current result page as GeoJSON points.
// With coverage=true a polygon enclosing the page's listings is appended.
func (h *Handler) PropertiesMap(c *gin.Context) {
	page, ok := h.search(c)
	if !ok {
		return
	}

	markers := make([]geometry.Marker, 0, len(page.Properties))
	for _, s := range page.Properties {
		props := map[string]interface{}{
			"id":            s.ID,
			"property_type": s.PropertyType,
			"title":         s.Title,
			"ad_action":     s.AdAction,
			"price":         s.Price,
			"city":          s.City,
		}
		if len(s.Images) > 0 {
			props["image"] = s.Images[0]
		}
		markers = append(markers, geometry.Marker{
			Location:   geometry.Point(s.Latitude, s.Longitude),
			Properties: props,
		})
	}
	fc := geometry.FeatureCollection(markers)
	if c.Query("coverage") == "true" {
		points := make([]orb.Point, 0, len(markers))
		for _, m := range markers {
			points = append(points, m.Location)
		}
		if area := geometry.CoverageFeature(points); area != nil {
			fc.Append(area)
		}
	}
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) search(c *gin.Context) (*search.Page, bool) {
	filter, err := search.ParseFilter(c.Request.URL.Query())
	if err != nil {
		badRequest(c, err.Error())
		return nil, false
	}

	page, err := h.engine.Search(c.Request.Context(), filter)
	if err != nil {
		if errors.Is(err, search.ErrInvalidFilter) {
			badRequest(c, err.Error())
			return nil, false
		}
		h.internalError(c, err, "Failed to search properties")
		return nil, false
	}
	return page, true
}

func (h *Handler) GetProperty(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	p, err := h.db.GetProperty(c.Request.Context(), ref)
	if err != nil {
		if isNotFound(err) {
			notFound(c, "Property not found")
			return
		}
		h.internalError(c, err, "Failed to get property")
		return
	}

	view := propertyView(p)
	owner, err := h.db.GetOwner(c.Request.Context(), p.Base().OwnerID)
	switch {
	case err == nil:
		view["owner"] = gin.H{
			"user_id":      owner.UserID,
			"name":         owner.Name,
			"phone":        owner.Phone,
			"email":        owner.Email,
			"company_name": owner.CompanyName,
		}
	case !isNotFound(err):
		h.logger.WithError(err).WithField("property", ref.String()).Warn("Failed to load listing owner")
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) CreateProperty(c *gin.Context) {
	caller := principal(c)
	ctx := c.Request.Context()

	var form PropertyForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}

	kind, err := models.ParsePropertyKind(form.PropertyType)
	if err != nil {
		badRequest(c, "Invalid property type")
		return
	}

	var ownerID uint
	switch {
	case caller.OwnerID != nil:
		ownerID = *caller.OwnerID
	case form.OwnerID != nil:
		exists, err := h.db.OwnerExists(ctx, *form.OwnerID)
		if err != nil {
			h.internalError(c, err, "Failed to check owner")
			return
		}
		if !exists {
			badRequest(c, "Invalid owner")
			return
		}
		ownerID = *form.OwnerID
	default:
		badRequest(c, "owner_id is required")
		return
	}

	p, err := models.NewProperty(kind)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := p.Apply(form.fields()); err != nil {
		badRequest(c, err.Error())
		return
	}
	base := p.Base()
	base.OwnerID = ownerID
	if err := base.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	files := uploadedImages(c)
	if len(files) > h.maxImages {
		badRequest(c, fmt.Sprintf("At most %d images are allowed", h.maxImages))
		return
	}

	if !h.geocode(c, base) {
		return
	}

	urls, ok := h.saveImages(c, files)
	if !ok {
		return
	}

	if err := h.db.CreateProperty(ctx, p, form.Features, urls); err != nil {
		h.images.DeleteAll(urls)
		h.internalError(c, err, "Failed to create property")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"property": p.Ref().String(),
		"owner_id": ownerID,
		"images":   len(urls),
	}).Info("Property created")

	view := propertyView(p)
	view["message"] = "Property created successfully"
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) UpdateProperty(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	p, err := h.db.GetProperty(ctx, ref)
	if err != nil {
		if isNotFound(err) {
			notFound(c, "Property not found")
			return
		}
		h.internalError(c, err, "Failed to get property")
		return
	}

	caller := principal(c)
	base := p.Base()
	if !caller.HasRole(models.RoleAdmin) && !caller.Owns(base.OwnerID) {
		forbidden(c)
		return
	}

	var form PropertyForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}

	oldPrice := base.Price
	fields := form.fields()
	if err := p.Apply(fields); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := base.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	files := uploadedImages(c)
	if len(p.ImageList())+len(files) > h.maxImages {
		badRequest(c, fmt.Sprintf("At most %d images are allowed", h.maxImages))
		return
	}

	if fields.AddressChanged() && !h.geocode(c, base) {
		return
	}

	urls, ok := h.saveImages(c, files)
	if !ok {
		return
	}

	update := database.PropertyUpdate{
		ReplaceFeatures: form.Features != nil,
		Features:        form.Features,
		AddImages:       urls,
	}
	if err := h.db.UpdateProperty(ctx, p, update); err != nil {
		h.images.DeleteAll(urls)
		h.internalError(c, err, "Failed to update property")
		return
	}

	if base.Price != oldPrice {
		h.notifyPriceChange(c, p, oldPrice)
	}

	view := propertyView(p)
	view["message"] = "Property updated successfully"
	c.JSON(http.StatusOK, view)
}

func (h *Handler) DeleteProperty(c *gin.Context) {
	var req PropertyRefRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}
	ref := req.Ref()
	ctx := c.Request.Context()

	ownerID, err := h.db.OwnerOf(ctx, ref)
	if err != nil {
		if isNotFound(err) {
			notFound(c, "Property not found")
			return
		}
		h.internalError(c, err, "Failed to look up property")
		return
	}

	caller := principal(c)
	if !caller.HasRole(models.RoleAdmin) && !caller.Owns(ownerID) {
		forbidden(c)
		return
	}

	urls, err := h.db.DeleteProperty(ctx, ref)
	if err != nil {
		if isNotFound(err) {
			notFound(c, "Property not found")
			return
		}
		h.internalError(c, err, "Failed to delete property")
		return
	}
	h.images.DeleteAll(urls)

	h.logger.WithFields(logrus.Fields{
		"property": ref.String(),
		"images":   len(urls),
	}).Info("Property deleted")

	c.JSON(http.StatusOK, gin.H{"message": "Property deleted successfully"})
}

func uploadedImages(c *gin.Context) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	return form.File["images"]
}

// saveImages stores every file or none of them
func (h *Handler) saveImages(c *gin.Context, files []*multipart.FileHeader) ([]string, bool) {
	for _, f := range files {
		if _, err := storage.CheckExtension(f.Filename); err != nil {
			badRequest(c, err.Error())
			return nil, false
		}
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := h.images.SaveUpload(f)
		if err != nil {
			h.images.DeleteAll(urls)
			if errors.Is(err, storage.ErrUnsupportedFileType) || errors.Is(err, storage.ErrFileTooLarge) {
				badRequest(c, err.Error())
				return nil, false
			}
			h.internalError(c, err, "Failed to store image")
			return nil, false
		}
		urls = append(urls, url)
	}
	return urls, true
}

// geocode resolves the listing's address into its coordinates
func (h *Handler) geocode(c *gin.Context, base *models.PropertyBase) bool {
	point, err := h.locator.Locate(c.Request.Context(), base.Address())
	if err != nil {
		if errors.Is(err, geocoding.ErrAddressNotFound) {
			badRequest(c, "Invalid address: location not found")
			return false
		}
		h.internalError(c, err, "Failed to geocode address")
		return false
	}
	base.Latitude = point.Lat()
	base.Longitude = point.Lon()
	return true
}

func (h *Handler) notifyPriceChange(c *gin.Context, p models.Property, oldPrice float64) {
	ref := p.Ref()
	log := h.logger.WithField("property", ref.String())

	users, err := h.db.FavoritedBy(c.Request.Context(), ref)
	if err != nil {
		log.WithError(err).Warn("Failed to load favorites for price change")
		return
	}
	if len(users) == 0 {
		return
	}

	base := p.Base()
	data, _ := json.Marshal(map[string]float64{
		"old_price": oldPrice,
		"new_price": base.Price,
	})

	batch := make([]*models.Notification, 0, len(users))
	for _, userID := range users {
		kind, id := ref.Kind, ref.ID
		batch = append(batch, &models.Notification{
			UserID:       userID,
			Type:         models.NotifyPriceChange,
			Title:        "Price changed",
			Message:      fmt.Sprintf("The price of %q changed from %.2f to %.2f", base.Title, oldPrice, base.Price),
			PropertyType: &kind,
			PropertyID:   &id,
			Data:         datatypes.JSON(data),
		})
	}

	if err := h.notifier.Push(batch); err != nil {
		log.WithError(err).Warn("Failed to queue price change notifications")
	}
}
