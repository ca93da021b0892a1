package email

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// 通知邮件的模板数据。
type templateData struct {
	SenderName  string
	FrontendURL string
	Year        int
}

var friendRequestTmpl = template.Must(template.New("friendRequest").Parse(`
<div style="font-family: 'Inter', sans-serif; background: #f6f8fb; padding: 40px;">
  <div style="max-width: 480px; margin: auto; background: white; border-radius: 16px; overflow: hidden;">
    <div style="background: linear-gradient(135deg, #6366f1, #8b5cf6, #ec4899); height: 6px;"></div>
    <div style="padding: 40px 30px; text-align: center;">
      <h2 style="color: #111827; margin-bottom: 10px;">Dream Journal Request</h2>
      <p style="color: #6b7280; font-size: 15px; margin-bottom: 25px;">
        <strong>{{.SenderName}}</strong> wants to connect with you and become your DreamMate!
      </p>
      <a href="{{.FrontendURL}}/friends"
         style="display: inline-block; padding: 12px 28px; border-radius: 10px; background: #6366f1; color: white; text-decoration: none; font-weight: 600;">
        View Request
      </a>
      <p style="color: #9ca3af; font-size: 13px; margin-top: 35px;">
        You can view or respond to this request anytime from your Dream Journal Friends page.
      </p>
    </div>
    <div style="background: #f9fafb; text-align: center; padding: 16px; font-size: 12px; color: #9ca3af;">
      &copy; {{.Year}} Dream Journal. Dream together, grow together.
    </div>
  </div>
</div>
`))

var requestAcceptedTmpl = template.Must(template.New("requestAccepted").Parse(`
<div style="font-family: 'Inter', sans-serif; background: #f6f8fb; padding: 40px;">
  <div style="max-width: 480px; margin: auto; background: white; border-radius: 16px; overflow: hidden;">
    <div style="background: linear-gradient(135deg, #6366f1, #8b5cf6, #ec4899); height: 6px;"></div>
    <div style="padding: 40px 30px; text-align: center;">
      <h2 style="color: #111827; margin-bottom: 10px;">You have a new DreamMate</h2>
      <p style="color: #6b7280; font-size: 15px; margin-bottom: 25px;">
        <strong>{{.SenderName}}</strong> accepted your friend request. You can now follow each other's dream progress.
      </p>
      <a href="{{.FrontendURL}}/friends"
         style="display: inline-block; padding: 12px 28px; border-radius: 10px; background: #6366f1; color: white; text-decoration: none; font-weight: 600;">
        Open Friends Page
      </a>
    </div>
    <div style="background: #f9fafb; text-align: center; padding: 16px; font-size: 12px; color: #9ca3af;">
      &copy; {{.Year}} Dream Journal. Dream together, grow together.
    </div>
  </div>
</div>
`))

// FriendRequestBody 渲染"收到好友请求"通知邮件的正文。
func FriendRequestBody(senderName, frontendURL string) (string, error) {
	return render(friendRequestTmpl, senderName, frontendURL)
}

// RequestAcceptedBody 渲染"好友请求被接受"通知邮件的正文。
func RequestAcceptedBody(senderName, frontendURL string) (string, error) {
	return render(requestAcceptedTmpl, senderName, frontendURL)
}

func render(tmpl *template.Template, senderName, frontendURL string) (string, error) {
	var buf bytes.Buffer
	data := templateData{
		SenderName:  senderName,
		FrontendURL: frontendURL,
		Year:        time.Now().Year(),
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("渲染邮件模板失败: %w", err)
	}
	return buf.String(), nil
}
