package bot

import (
	"fmt"
	"strings"

	"inspirepixel/internal/gallery"
	"inspirepixel/internal/model"
)

// maxMessageLen is the Telegram text message limit.
const maxMessageLen = 4096

// FormatImageList formats images as one line each, followed by a summary
// of the view.
func FormatImageList(items []model.Image, view gallery.View, favorite func(string) bool) string {
	if len(items) == 0 {
		return "No images found."
	}
	var b strings.Builder
	for _, img := range items {
		line := fmt.Sprintf("%s  %s", img.ID, img.Title)
		if img.PhotographerName != "" {
			line += " by " + img.PhotographerName
		}
		if img.IsPremium {
			line += " [pro]"
		}
		if favorite(img.ID) {
			line += " ★"
		}
		line += "\n"
		if b.Len()+len(line) > maxMessageLen-200 {
			b.WriteString("…\n")
			break
		}
		b.WriteString(line)
	}
	b.WriteString("\n")
	b.WriteString(FormatViewSummary(view))
	b.WriteString("\nOpen an image with /open <id>.")
	return b.String()
}

// FormatViewSummary describes what the gallery currently lists.
func FormatViewSummary(v gallery.View) string {
	source := "curated photos"
	if q := v.Feed.LastQueryText; q != "" {
		source = fmt.Sprintf("%q", q)
	}
	if v.Tab == gallery.TabFavorites {
		return fmt.Sprintf("Favorites among %d loaded images from %s.", len(v.Feed.Items), source)
	}
	return fmt.Sprintf("%d images from %s, page %d.", len(v.Feed.Items), source, v.Feed.CurrentPage)
}

// FormatImageCaption formats the caption of an opened image.
func FormatImageCaption(img model.Image) string {
	var b strings.Builder
	b.WriteString(img.Title)
	if img.PhotographerName != "" {
		fmt.Fprintf(&b, "\nPhoto by %s", img.PhotographerName)
		if img.PhotographerURL != "" {
			fmt.Fprintf(&b, " (%s)", img.PhotographerURL)
		}
	}
	fmt.Fprintf(&b, "\nCategory: %s", img.Category)
	if img.ProviderPageURL != "" {
		fmt.Fprintf(&b, "\n%s", img.ProviderPageURL)
	}
	return b.String()
}

// FormatDescription formats a generated description.
func FormatDescription(d model.Description) string {
	return fmt.Sprintf("%s\n\n(%s)", d.Text, originLabel(d.Origin))
}

// FormatUser formats the signed-in user.
func FormatUser(u model.User) string {
	name := u.Name
	if name == "" {
		name = u.Email
	}
	plan := "Free"
	if u.Entitlement == model.EntitlementPro {
		plan = "Pro"
	}
	return fmt.Sprintf("%s <%s>\nPlan: %s", name, u.Email, plan)
}

func originLabel(o model.Origin) string {
	switch o {
	case model.OriginRemote:
		return "generated"
	case model.OriginCache:
		return "saved"
	default:
		return "suggested"
	}
}

func fileName(imageID, contentType string) string {
	ext := ".jpg"
	switch {
	case strings.HasPrefix(contentType, "image/png"):
		ext = ".png"
	case strings.HasPrefix(contentType, "image/webp"):
		ext = ".webp"
	case strings.HasPrefix(contentType, "image/gif"):
		ext = ".gif"
	}
	return "inspirepixel-" + imageID + ext
}
