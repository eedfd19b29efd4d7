package catalog

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jafsabakes/bakery-api/app/api"
	"github.com/jafsabakes/bakery-api/app/media"
	"github.com/jafsabakes/bakery-api/models"
	"github.com/shopspring/decimal"
)

const (
	priceMaxDigits        = 10
	priceDecimalPlaces    = 2
	multipartMemory       = 8 << 20
	formOverheadAllowance = 1 << 20
)

var requiredFields = []string{"name", "price", "category_id"}

var (
	errUnsupportedMedia = errors.New("unsupported media type")
	errBodyTooLarge     = errors.New("request body too large")
)

var booleanValues = map[string]bool{
	"true": true, "t": true, "yes": true, "y": true, "on": true, "1": true,
	"false": false, "f": false, "no": false, "n": false, "off": false, "0": false,
}

// productForm is the raw body of a product write.
type productForm struct {
	values url.Values
	image  *multipart.FileHeader
}

func (f *productForm) fileNames() []string {
	if f.image == nil {
		return []string{}
	}
	return []string{f.image.Filename}
}

// productInput holds the decoded fields. Nil means not supplied.
type productInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	CategoryID  *uint
	IsActive    *bool
	Image       *multipart.FileHeader
	ClearImage  bool
}

func (in productInput) applyTo(p *models.Product) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.CategoryID != nil && *in.CategoryID != p.CategoryID {
		p.CategoryID = *in.CategoryID
		p.Category = models.Category{}
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.ClearImage {
		p.Image = nil
	}
}

// readProductForm parses a multipart or urlencoded body capped at
// maxUpload plus room for the text fields.
func readProductForm(w http.ResponseWriter, r *http.Request, maxUpload int64) (*productForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" && mediaType != "application/x-www-form-urlencoded" {
		return nil, fmt.Errorf("%w %q in request", errUnsupportedMedia, mediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+formOverheadAllowance)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("malformed form body: %w", err)
	}

	form := &productForm{values: r.PostForm}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["image"]; len(files) > 0 {
			form.image = files[0]
		}
	}
	return form, nil
}

// missingFields lists required fields that are absent or empty.
func missingFields(values url.Values) []string {
	missing := []string{}
	for _, field := range requiredFields {
		if values.Get(field) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// decodeProduct validates form into a productInput. With partial unset
// every required field must be supplied. The returned error is reserved
// for lookup failures that are not the client's fault.
func decodeProduct(ctx context.Context, categories CategoryLookup, form *productForm, partial bool, maxUpload int64) (productInput, api.FieldErrors, error) {
	var in productInput
	fe := api.FieldErrors{}
	values := form.values

	if raw, ok := field(values, "name"); ok {
		name := strings.TrimSpace(raw)
		fe.Check("name", name, "required,max=200")
		in.Name = &name
	} else if !partial {
		fe.Add("name", api.MsgRequired)
	}

	if raw, ok := field(values, "description"); ok {
		description := strings.TrimSpace(raw)
		in.Description = &description
	}

	if raw, ok := field(values, "price"); ok {
		price, msg := parsePrice(raw)
		if msg != "" {
			fe.Add("price", msg)
		} else {
			in.Price = &price
		}
	} else if !partial {
		fe.Add("price", api.MsgRequired)
	}

	if raw, ok := field(values, "category_id"); ok {
		id, msg, err := lookupCategory(ctx, categories, raw)
		if err != nil {
			return in, nil, err
		}
		if msg != "" {
			fe.Add("category_id", msg)
		} else {
			in.CategoryID = &id
		}
	} else if !partial {
		fe.Add("category_id", api.MsgRequired)
	}

	if raw, ok := field(values, "is_active"); ok {
		active, known := booleanValues[strings.ToLower(strings.TrimSpace(raw))]
		if !known {
			fe.Add("is_active", "Must be a valid boolean.")
		} else {
			in.IsActive = &active
		}
	}

	switch raw, ok := field(values, "image"); {
	case form.image != nil:
		if err := media.ValidateImage(form.image, maxUpload); err != nil {
			fe.Add("image", imageMessage(err))
		} else {
			in.Image = form.image
		}
	case ok && raw == "":
		in.ClearImage = true
	case ok:
		fe.Add("image", "The submitted data was not a file. Check the encoding type on the form.")
	}

	return in, fe, nil
}

func field(values url.Values, key string) (string, bool) {
	v, ok := values[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// parsePrice enforces decimal(10,2). It returns the violation message, if any.
func parsePrice(raw string) (decimal.Decimal, string) {
	const invalid = "A valid number is required."

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, invalid
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, invalid
	}

	digits := coefficientDigits(price)
	exp := int(price.Exponent())
	var total, places int
	switch {
	case exp >= 0:
		total, places = digits+exp, 0
	case digits > -exp:
		total, places = digits, -exp
	default:
		total, places = -exp, -exp
	}
	whole := total - places

	switch {
	case total > priceMaxDigits:
		return decimal.Decimal{}, fmt.Sprintf("Ensure that there are no more than %d digits in total.", priceMaxDigits)
	case places > priceDecimalPlaces:
		return decimal.Decimal{}, fmt.Sprintf("Ensure that there are no more than %d decimal places.", priceDecimalPlaces)
	case whole > priceMaxDigits-priceDecimalPlaces:
		return decimal.Decimal{}, fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", priceMaxDigits-priceDecimalPlaces)
	}
	return price.Round(priceDecimalPlaces), ""
}

func coefficientDigits(d decimal.Decimal) int {
	c := d.Coefficient()
	return len(c.Abs(c).String())
}

// lookupCategory parses a primary key and checks that the category exists.
func lookupCategory(ctx context.Context, categories CategoryLookup, raw string) (uint, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "This field may not be null.", nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, "Incorrect type. Expected pk value, received str.", nil
	}
	if _, err := categories.GetCategoryByID(ctx, uint(id)); err != nil {
		if errors.Is(err, models.ErrCategoryNotFound) {
			return 0, invalidPK(raw), nil
		}
		return 0, "", fmt.Errorf("looking up category %d: %w", id, err)
	}
	return uint(id), "", nil
}

func invalidPK(raw string) string {
	return fmt.Sprintf("Invalid pk %q - object does not exist.", raw)
}

func imageMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), media.ErrInvalidImage.Error()+": ")
	if msg == "" {
		return "Upload a valid image."
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
