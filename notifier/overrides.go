// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"fmt"
	"slices"

	"github.com/stacklok/errorflynn/webhook"
)

// Overridable attachment keys, as they appear in configuration files and in
// Overrides.Suppress.
const (
	KeyAuthorName = "author_name"
	KeyAuthorLink = "author_link"
	KeyAuthorIcon = "author_icon"
	KeyColor      = "color"
	KeyFallback   = "fallback"
	KeyPretext    = "pretext"
	KeyTitle      = "title"
	KeyTitleLink  = "title_link"
	KeyText       = "text"
	KeyFields     = "fields"
	KeyMrkdwnIn   = "mrkdwn_in"
	KeyImageURL   = "image_url"
	KeyThumbURL   = "thumb_url"
	KeyFooter     = "footer"
	KeyFooterIcon = "footer_icon"
)

// Overrides replace or suppress parts of the computed attachment.
//
// A nil field keeps the computed value. A non-nil field replaces it; pointing
// at the zero value ("" or an empty slice) suppresses the key, which is then
// left out of the payload. Keys named in Suppress are cleared regardless.
type Overrides struct {
	AuthorName *string          `yaml:"author_name,omitempty" json:"author_name,omitempty"`
	AuthorLink *string          `yaml:"author_link,omitempty" json:"author_link,omitempty"`
	AuthorIcon *string          `yaml:"author_icon,omitempty" json:"author_icon,omitempty"`
	Color      *string          `yaml:"color,omitempty" json:"color,omitempty"`
	Fallback   *string          `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	Pretext    *string          `yaml:"pretext,omitempty" json:"pretext,omitempty"`
	Title      *string          `yaml:"title,omitempty" json:"title,omitempty"`
	TitleLink  *string          `yaml:"title_link,omitempty" json:"title_link,omitempty"`
	Text       *string          `yaml:"text,omitempty" json:"text,omitempty"`
	Fields     *[]webhook.Field `yaml:"fields,omitempty" json:"fields,omitempty"`
	MrkdwnIn   *[]string        `yaml:"mrkdwn_in,omitempty" json:"mrkdwn_in,omitempty"`
	ImageURL   *string          `yaml:"image_url,omitempty" json:"image_url,omitempty"`
	ThumbURL   *string          `yaml:"thumb_url,omitempty" json:"thumb_url,omitempty"`
	Footer     *string          `yaml:"footer,omitempty" json:"footer,omitempty"`
	FooterIcon *string          `yaml:"footer_icon,omitempty" json:"footer_icon,omitempty"`

	Suppress []string `yaml:"suppress,omitempty" json:"suppress,omitempty"`
}

// Keys lists every key accepted by Overrides.Suppress.
func Keys() []string {
	return []string{
		KeyAuthorName, KeyAuthorLink, KeyAuthorIcon, KeyColor, KeyFallback,
		KeyPretext, KeyTitle, KeyTitleLink, KeyText, KeyFields, KeyMrkdwnIn,
		KeyImageURL, KeyThumbURL, KeyFooter, KeyFooterIcon,
	}
}

type stringKey struct {
	name   string
	value  *string
	target *string
}

func (o *Overrides) stringKeys(a *webhook.Attachment) []stringKey {
	return []stringKey{
		{KeyAuthorName, o.AuthorName, &a.AuthorName},
		{KeyAuthorLink, o.AuthorLink, &a.AuthorLink},
		{KeyAuthorIcon, o.AuthorIcon, &a.AuthorIcon},
		{KeyColor, o.Color, &a.Color},
		{KeyFallback, o.Fallback, &a.Fallback},
		{KeyPretext, o.Pretext, &a.Pretext},
		{KeyTitle, o.Title, &a.Title},
		{KeyTitleLink, o.TitleLink, &a.TitleLink},
		{KeyText, o.Text, &a.Text},
		{KeyImageURL, o.ImageURL, &a.ImageURL},
		{KeyThumbURL, o.ThumbURL, &a.ThumbURL},
		{KeyFooter, o.Footer, &a.Footer},
		{KeyFooterIcon, o.FooterIcon, &a.FooterIcon},
	}
}

func (o *Overrides) validate() error {
	known := Keys()
	for _, key := range o.Suppress {
		if !slices.Contains(known, key) {
			return fmt.Errorf("%w: cannot suppress unknown key %q", ErrInvalidOptions, key)
		}
	}
	return nil
}

// Apply merges the overrides into a.
func (o *Overrides) Apply(a *webhook.Attachment) {
	for _, k := range o.stringKeys(a) {
		if k.value != nil {
			*k.target = *k.value
		}
	}
	if o.Fields != nil {
		a.Fields = slices.Clone(*o.Fields)
	}
	if o.MrkdwnIn != nil {
		a.MrkdwnIn = slices.Clone(*o.MrkdwnIn)
	}

	for _, key := range o.Suppress {
		switch key {
		case KeyFields:
			a.Fields = nil
		case KeyMrkdwnIn:
			a.MrkdwnIn = nil
		default:
			for _, k := range o.stringKeys(a) {
				if k.name == key {
					*k.target = ""
				}
			}
		}
	}
}
