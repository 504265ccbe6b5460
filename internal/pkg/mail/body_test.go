package mail_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"lotero/internal/pkg/mail"
	"lotero/internal/testhelpers"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func leaf(mimeType, content string) mail.Part {
	return mail.Part{
		MimeType: mimeType,
		Body:     mail.PartBody{Size: len(content), Data: base64.RawURLEncoding.EncodeToString([]byte(content))},
	}
}

var _ = Describe("DecodeBody", func() {
	It("keeps text/plain leaves", func() {
		msg := &mail.RawMessage{Payload: leaf("text/plain; charset=UTF-8", "Premio: 0,50 €")}
		Expect(mail.DecodeBody(msg)).To(Equal("Premio: 0,50 €"))
	})

	It("reduces html to visible text with line breaks", func() {
		msg := &mail.RawMessage{Payload: leaf("text/html", testhelpers.PrizeHTML)}

		text := mail.DecodeBody(msg)
		Expect(text).To(ContainSubstring("premio de 1.234,56 €"))
		Expect(text).To(ContainSubstring("Grupo: Amigos del bar\n"))
		Expect(text).NotTo(ContainSubstring("999,00"))
		Expect(text).NotTo(ContainSubstring("color:red"))
		Expect(text).NotTo(ContainSubstring("TuLotero"))
	})

	It("turns <br> into newlines", func() {
		Expect(mail.HTMLToText([]byte("<p>Grupo: A<br>Fecha: hoy</p>"))).To(Equal("Grupo: A\nFecha: hoy\n"))
	})

	It("folds nested multipart trees in order and skips attachments", func() {
		msg := &mail.RawMessage{Payload: mail.Part{
			MimeType: "multipart/mixed",
			Parts: []mail.Part{
				{
					MimeType: "multipart/alternative",
					Parts:    []mail.Part{leaf("text/plain", "uno "), leaf("text/html", "<div>dos</div>")},
				},
				leaf("application/pdf", "%PDF-1.4"),
				leaf("text/plain", "tres"),
			},
		}}

		Expect(mail.DecodeBody(msg)).To(Equal("uno dos\ntres"))
	})

	It("tolerates padded and standard base64", func() {
		padded := base64.URLEncoding.EncodeToString([]byte("hola?>!"))
		std := base64.StdEncoding.EncodeToString([]byte("hola?>!"))

		for _, data := range []string{padded, std} {
			b, err := mail.DecodeBase64URL(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(b)).To(Equal("hola?>!"))
		}
	})

	It("skips leaves that do not decode", func() {
		msg := &mail.RawMessage{Payload: mail.Part{MimeType: "text/plain", Body: mail.PartBody{Data: "!!!"}}}
		Expect(mail.DecodeBody(msg)).To(BeEmpty())
	})

	It("returns empty for a nil message", func() {
		Expect(mail.DecodeBody(nil)).To(BeEmpty())
	})
})

var _ = Describe("RawMessage", func() {
	It("decodes a Gmail fixture", func() {
		data, err := testhelpers.LoadFixture("plain_message.json")
		Expect(err).NotTo(HaveOccurred())

		var msg mail.RawMessage
		Expect(json.Unmarshal(data, &msg)).To(Succeed())

		Expect(msg.Subject()).To(Equal("Premio en el boleto de Bonoloto ABCD123456XY"))
		Expect(msg.ReceivedAt()).To(Equal(time.UnixMilli(1770150600000).UTC()))
		Expect(strings.TrimSpace(mail.DecodeBody(&msg))).To(Equal("Has ganado 12,00 €\nSorteo: 17/01/26"))
	})

	It("prefers the Date header", func() {
		msg := mail.RawMessage{
			InternalDate: "1",
			Payload: mail.Part{Headers: []mail.Header{
				{Name: "date", Value: "Sat, 17 Jan 2026 10:00:00 +0000"},
			}},
		}
		Expect(msg.ReceivedAt().Equal(time.Date(2026, 1, 17, 10, 0, 0, 0, time.UTC))).To(BeTrue())
	})

	It("returns the zero time without any date", func() {
		Expect(new(mail.RawMessage).ReceivedAt().IsZero()).To(BeTrue())
	})
})
