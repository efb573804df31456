package validate

import (
	"errors"
	"strings"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
)

// Skip marks an optional line the user wants to leave empty.
const Skip = "-"

// Lines splits a message into trimmed, non-blank lines.
func Lines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// collect merges the problems of err into verr.
func collect(verr *domain.ValidationError, err error) {
	if err == nil {
		return
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		verr.Problems = append(verr.Problems, ve.Problems...)
		return
	}
	verr.Add(err.Error())
}

func optionalLine(lines []string, i int) (string, bool) {
	if i >= len(lines) || lines[i] == Skip {
		return "", false
	}
	return lines[i], true
}

// ParseCompanyRecord maps name, email, description, phone, [website], address.
// Five lines omit the website; six lines include it.
func ParseCompanyRecord(text string) (model.CompanyDraft, error) {
	var d model.CompanyDraft
	lines := Lines(text)
	verr := &domain.ValidationError{}

	switch {
	case len(lines) < 5:
		verr.Add("Il manque des lignes : 5 lignes minimum sont attendues (nom, e-mail, description, téléphone, [site web], adresse).")
		return d, verr
	case len(lines) > 6:
		verr.Add("Trop de lignes : 6 lignes maximum sont attendues.")
		return d, verr
	}

	var err error
	d.Name, err = Required("Le nom de l'entreprise", lines[0], MinNameLen)
	collect(verr, err)
	d.Email, err = Email("L'e-mail", lines[1])
	collect(verr, err)
	d.Description, err = Required("La description", lines[2], MinDescriptionLen)
	collect(verr, err)
	d.Phone, err = Phone("Le téléphone", lines[3])
	collect(verr, err)

	addressLine := lines[4]
	if len(lines) == 6 {
		if w, ok := optionalLine(lines, 4); ok {
			d.Website, err = Website("Le site web", w)
			collect(verr, err)
		}
		addressLine = lines[5]
	}
	d.Address, err = Required("L'adresse", addressLine, MinAddressLen)
	collect(verr, err)

	if err := verr.OrNil(); err != nil {
		return model.CompanyDraft{}, err
	}
	return d, nil
}

// ParseClientRecord maps name, phone, [email], [address].
func ParseClientRecord(text string) (model.ClientDraft, error) {
	var d model.ClientDraft
	lines := Lines(text)
	verr := &domain.ValidationError{}

	if len(lines) < 2 {
		verr.Add("Il manque des lignes : le nom et le téléphone sont obligatoires.")
		return d, verr
	}
	if len(lines) > 4 {
		verr.Add("Trop de lignes : 4 lignes maximum sont attendues.")
		return d, verr
	}

	var err error
	d.Name, err = Required("Le nom", lines[0], MinNameLen)
	collect(verr, err)
	d.Phone, err = Phone("Le téléphone", lines[1])
	collect(verr, err)
	if v, ok := optionalLine(lines, 2); ok {
		email, err := Email("L'e-mail", v)
		collect(verr, err)
		d.Email = &email
	}
	if v, ok := optionalLine(lines, 3); ok {
		addr, err := Required("L'adresse", v, MinAddressLen)
		collect(verr, err)
		d.Address = &addr
	}

	if err := verr.OrNil(); err != nil {
		return model.ClientDraft{}, err
	}
	return d, nil
}

// ParseArticleRecord maps name, price, stock, unit, [tva], [source].
func ParseArticleRecord(text string) (model.ArticleDraft, error) {
	var d model.ArticleDraft
	lines := Lines(text)
	verr := &domain.ValidationError{}

	if len(lines) < 4 {
		verr.Add("Il manque des lignes : nom, prix, stock et unité sont obligatoires.")
		return d, verr
	}
	if len(lines) > 6 {
		verr.Add("Trop de lignes : 6 lignes maximum sont attendues.")
		return d, verr
	}

	var err error
	d.Name, err = Required("Le nom", lines[0], MinNameLen)
	collect(verr, err)
	d.Price, err = PositiveNumber("Le prix", lines[1])
	collect(verr, err)
	d.Stock, err = Quantity("Le stock", lines[2], true)
	collect(verr, err)
	d.Unit, err = Required("L'unité", lines[3], MinUnitLen)
	collect(verr, err)
	if v, ok := optionalLine(lines, 4); ok {
		d.TVA, err = Percentage("La TVA", v)
		collect(verr, err)
	}
	if v, ok := optionalLine(lines, 5); ok {
		d.Source, err = Required("La source", v, MinNameLen)
		collect(verr, err)
	}

	if err := verr.OrNil(); err != nil {
		return model.ArticleDraft{}, err
	}
	return d, nil
}

// ClientField validates a single edited value and returns its canonical form.
// Optional fields accept Skip to clear them.
func ClientField(field, raw string) (string, error) {
	switch field {
	case model.ClientFieldName:
		return Required("Le nom", raw, MinNameLen)
	case model.ClientFieldPhone:
		return Phone("Le téléphone", raw)
	case model.ClientFieldEmail:
		if strings.TrimSpace(raw) == Skip {
			return "", nil
		}
		return Email("L'e-mail", raw)
	case model.ClientFieldAddress:
		if strings.TrimSpace(raw) == Skip {
			return "", nil
		}
		return Required("L'adresse", raw, MinAddressLen)
	}
	return "", domain.ErrStateCorruption
}

func ArticleField(field, raw string) (string, error) {
	switch field {
	case model.ArticleFieldName:
		return Required("Le nom", raw, MinNameLen)
	case model.ArticleFieldPrice:
		f, err := PositiveNumber("Le prix", raw)
		if err != nil {
			return "", err
		}
		return FormatNumber(f), nil
	case model.ArticleFieldUnit:
		return Required("L'unité", raw, MinUnitLen)
	case model.ArticleFieldTVA:
		f, err := Percentage("La TVA", raw)
		if err != nil {
			return "", err
		}
		return FormatNumber(f), nil
	case model.ArticleFieldSource:
		return Required("La source", raw, MinNameLen)
	}
	return "", domain.ErrStateCorruption
}

// StockQuantity validates the quantity typed for a stock operation. Replace accepts zero.
func StockQuantity(op model.StockOp, raw string) (int64, error) {
	return Quantity("La quantité", raw, op == model.StockReplace)
}

// Quantity accepts a whole number up to model.MaxStock; zero only when allowZero is set.
func Quantity(label, raw string, allowZero bool) (int64, error) {
	parse := PositiveInt
	if allowZero {
		parse = NonNegativeInt
	}
	n, err := parse(label, raw)
	if err != nil {
		return 0, err
	}
	if n > model.MaxStock {
		return 0, problem("%s ne peut pas dépasser %d.", label, model.MaxStock)
	}
	return n, nil
}

// MovementType checks enum membership of a movement type name.
func MovementType(raw string) (model.MovementType, error) {
	v, err := OneOf("Le type de mouvement", raw, model.MovementTypes)
	if err != nil {
		return "", err
	}
	return model.MovementType(v), nil
}
