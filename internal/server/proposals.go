package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	proposaldomain "github.com/soloware/dealdesk/internal/proposal/domain"
)

type createProposalRequest struct {
	Title       string `json:"title"`
	ClientName  string `json:"client_name"`
	Description string `json:"description"`
	Value       string `json:"value"`
}

func (s *Server) CreateProposal(c *gin.Context) {
	var req createProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	proposal, err := s.proposal.Create(c.Request.Context(), proposaldomain.CreateRequest{
		OwnerID:     ownerID(c),
		Title:       req.Title,
		ClientName:  req.ClientName,
		Description: req.Description,
		Value:       req.Value,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, proposal)
}

func (s *Server) ListProposals(c *gin.Context) {
	proposals, err := s.proposal.List(c.Request.Context(), ownerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

func (s *Server) GetProposal(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	proposal, err := s.proposal.Get(c.Request.Context(), ownerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateProposalStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	proposal, err := s.proposal.UpdateStatus(c.Request.Context(), ownerID(c), id, proposaldomain.DisplayStatus(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

type shareLinkRequest struct {
	TTLHours int `json:"ttl_hours"`
}

func (s *Server) IssueShareLink(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req shareLinkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	link, err := s.proposal.IssueShareLink(c.Request.Context(), ownerID(c), id, req.TTLHours)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

type markPaidRequest struct {
	Note string `json:"note"`
}

func (s *Server) MarkPaidManually(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req markPaidRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	proposal, err := s.proposal.MarkPaidManually(c.Request.Context(), ownerID(c), id, req.Note)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.Param(name))
	if err != nil || id == 0 {
		return 0, invalidRequestError()
	}
	return id, nil
}
