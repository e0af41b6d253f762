package strand

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FileUploader 将表单中的上传文件保存到 DstPathFunc 给出的位置
type FileUploader struct {
	// FileField 对应于文件在表单中的字段名字
	FileField string
	// DstPathFunc 计算目标路径
	DstPathFunc func(*multipart.FileHeader) string
}

// Handle 文件上传
func (f *FileUploader) Handle() Handler {
	return func(ctx *Context) {
		file, fileHeader, err := ctx.Request.FormFile(f.FileField)
		if err != nil {
			ctx.Error(NewHTTPError(http.StatusBadRequest, "upload failure: "+err.Error()))
			return
		}
		defer file.Close()

		dst := f.DstPathFunc(fileHeader)
		dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o666)
		if err != nil {
			ctx.Error(err)
			return
		}
		defer dstFile.Close()
		if _, err = io.CopyBuffer(dstFile, file, nil); err != nil {
			ctx.Error(err)
			return
		}
		ctx.Render("upload success")
	}
}

// FileDownloader 以附件形式返回 Dir 下由查询参数 file 指定的文件
type FileDownloader struct {
	Dir string
}

// Handle 文件下载
func (f *FileDownloader) Handle() Handler {
	return func(ctx *Context) {
		name, err := ctx.QueryValue("file").String()
		if err != nil || name == "" {
			ctx.ClientError(http.StatusBadRequest)
			return
		}
		root, err := filepath.Abs(f.Dir)
		if err != nil {
			ctx.Error(err)
			return
		}
		dst := filepath.Join(root, filepath.Clean("/"+name))
		if dst != root && !strings.HasPrefix(dst, root+string(filepath.Separator)) {
			ctx.ClientError(http.StatusBadRequest)
			return
		}
		stat, err := os.Stat(dst)
		if err != nil || stat.IsDir() {
			ctx.ClientError(http.StatusNotFound)
			return
		}

		header := ctx.Response.Header()
		header.Set("Content-Disposition", "attachment;filename="+filepath.Base(dst))
		header.Set("Content-Description", "File Transfer")
		header.Set("Content-Type", "application/octet-stream")
		header.Set("Content-Transfer-Encoding", "binary")
		header.Set("Expires", "0")
		header.Set("Cache-Control", "must-revalidate")
		header.Set("Pragma", "public")
		http.ServeFile(ctx.Response, ctx.Request, dst)
	}
}
